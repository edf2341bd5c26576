// Package frame decodes the fixed 30-character telemetry line emitted by the
// CHY 506R thermometer.
package frame

import (
	"fmt"
	"strconv"
	"strings"
)

// Length is the size of a well-formed frame once trailing whitespace is removed
const Length = 30

// Field windows within a frame
const (
	channel1Offset = 0
	channel2Offset = 8
	tempWidth      = 7
	hourOffset     = 16
	minuteOffset   = 18
	secondOffset   = 20
	statusOffset   = 22
)

// Timestamp is the device clock time carried by a frame.
// Values are not validated against calendar ranges.
type Timestamp struct {
	Hour   int
	Minute int
	Second int
}

// Before reports whether t sorts strictly before u (hour, minute, second)
func (t Timestamp) Before(u Timestamp) bool {
	if t.Hour != u.Hour {
		return t.Hour < u.Hour
	}
	if t.Minute != u.Minute {
		return t.Minute < u.Minute
	}
	return t.Second < u.Second
}

// String formats the timestamp as HH:MM:SS
func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Reading is one decoded frame
type Reading struct {
	Channel1 float64
	Channel2 float64
	Time     Timestamp
	Status   string
}

// LengthError reports a line whose trimmed length is not Length
type LengthError struct {
	Line string
	Len  int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("protocol error: %q (len = %d)", e.Line, e.Len)
}

// FieldError reports a numeric field that could not be parsed
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s field %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Trim removes trailing whitespace, including the CR/LF line terminator
func Trim(line string) string {
	return strings.TrimRight(line, " \t\r\n")
}

// Decode parses one raw line. Trailing whitespace is ignored.
func Decode(line string) (Reading, error) {
	l := Trim(line)
	if len(l) != Length {
		return Reading{}, &LengthError{Line: l, Len: len(l)}
	}

	t1, err := parseTemperature(l, channel1Offset, "channel1")
	if err != nil {
		return Reading{}, err
	}
	t2, err := parseTemperature(l, channel2Offset, "channel2")
	if err != nil {
		return Reading{}, err
	}

	hour, err := parseDecimal(l, hourOffset, "hour")
	if err != nil {
		return Reading{}, err
	}
	minute, err := parseDecimal(l, minuteOffset, "minute")
	if err != nil {
		return Reading{}, err
	}
	second, err := parseDecimal(l, secondOffset, "second")
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Channel1: t1,
		Channel2: t2,
		Time:     Timestamp{Hour: hour, Minute: minute, Second: second},
		Status:   l[statusOffset:],
	}, nil
}

// parseTemperature reads a sign byte followed by six hex digits of millidegrees
func parseTemperature(l string, off int, field string) (float64, error) {
	window := l[off : off+tempWidth]
	magnitude, err := strconv.ParseInt(window[1:], 16, 64)
	if err != nil {
		return 0, &FieldError{Field: field, Value: window, Err: err}
	}
	value := float64(magnitude) / 1000
	if window[0] == '-' {
		value = -value
	}
	return value, nil
}

func parseDecimal(l string, off int, field string) (int, error) {
	s := l[off : off+2]
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FieldError{Field: field, Value: s, Err: err}
	}
	return v, nil
}
