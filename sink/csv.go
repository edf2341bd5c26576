package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"chy506r/aggregate"
)

// Stdout is the output path that selects standard output
const Stdout = "-"

// CSV writes the semicolon separated table consumed by the plotter
type CSV struct {
	w      *bufio.Writer
	closer io.Closer
	path   string
}

// NewCSV creates a table writer over w. If w implements io.Closer it is
// closed by Close.
func NewCSV(path string, w io.Writer) *CSV {
	c := &CSV{
		w:    bufio.NewWriter(w),
		path: path,
	}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// OpenCSV truncate-creates path, or uses stdout when path is "-"
func OpenCSV(path string) (*CSV, error) {
	if path == Stdout {
		return NewCSV(path, nopCloser{os.Stdout}), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output %s: %w", path, err)
	}
	return NewCSV(path, f), nil
}

// Path returns the destination path
func (c *CSV) Path() string {
	return c.path
}

// WriteHeader writes the column header line
func (c *CSV) WriteHeader() error {
	if _, err := c.w.WriteString(Header + "\n"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return c.flush()
}

// WriteSample writes one row and flushes it to the destination
func (c *CSV) WriteSample(s aggregate.Sample) error {
	if _, err := c.w.WriteString(FormatSample(s)); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	return c.flush()
}

// Close flushes buffered data and closes the destination
func (c *CSV) Close() error {
	err := c.w.Flush()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (c *CSV) flush() error {
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// FormatSample renders a row as HH:MM:SS;T1;T2 followed by a newline
func FormatSample(s aggregate.Sample) string {
	return s.Time.String() + ";" + formatFloat(s.Channel1) + ";" + formatFloat(s.Channel2) + "\n"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseRow is the inverse of FormatSample. The header line is rejected.
func ParseRow(line string) (aggregate.Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if len(fields) != 3 {
		return aggregate.Sample{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}

	var s aggregate.Sample
	if _, err := fmt.Sscanf(fields[0], "%d:%d:%d", &s.Time.Hour, &s.Time.Minute, &s.Time.Second); err != nil {
		return aggregate.Sample{}, fmt.Errorf("invalid time %q: %w", fields[0], err)
	}

	var err error
	if s.Channel1, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return aggregate.Sample{}, fmt.Errorf("invalid T1 %q: %w", fields[1], err)
	}
	if s.Channel2, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return aggregate.Sample{}, fmt.Errorf("invalid T2 %q: %w", fields[2], err)
	}
	return s, nil
}

// ReadAll parses a table written by CSV, skipping the header and any
// line that does not parse
func ReadAll(r io.Reader) ([]aggregate.Sample, error) {
	var samples []aggregate.Sample
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == Header || line == "" {
			continue
		}
		s, err := ParseRow(line)
		if err != nil {
			continue
		}
		samples = append(samples, s)
	}
	return samples, scanner.Err()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
