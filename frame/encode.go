package frame

import (
	"fmt"
	"math"
)

// maxMagnitude is the largest value six hex digits can carry
const maxMagnitude = 0xFFFFFF

// Encode renders r as a frame in the device's wire format, without the line
// terminator. Temperatures are rounded to millidegrees and clamped to the
// six hex digit range; the status is padded or cut to fit.
func Encode(r Reading) string {
	status := fmt.Sprintf("%-8s", r.Status)
	if len(status) > Length-statusOffset {
		status = status[:Length-statusOffset]
	}
	return fmt.Sprintf("%s %s %02d%02d%02d%s",
		encodeTemperature(r.Channel1),
		encodeTemperature(r.Channel2),
		r.Time.Hour%100, r.Time.Minute%100, r.Time.Second%100,
		status,
	)
}

func encodeTemperature(v float64) string {
	sign := "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	m := int64(math.Round(v * 1000))
	if m > maxMagnitude {
		m = maxMagnitude
	}
	return fmt.Sprintf("%s%06X", sign, m)
}
