// Package aggregate reduces readings sharing a clock second to one averaged sample.
package aggregate

import (
	"chy506r/frame"
)

// initial sorts before any timestamp the device can send
var initial = frame.Timestamp{Hour: 0, Minute: 0, Second: -1}

// Sample is one averaged record written to a sink
type Sample struct {
	Time     frame.Timestamp
	Channel1 float64
	Channel2 float64
}

// Aggregator keeps one open bucket of readings for the current timestamp.
// It is not safe for concurrent use.
type Aggregator struct {
	last   frame.Timestamp
	bucket []frame.Reading
}

// New creates an aggregator with an empty bucket
func New() *Aggregator {
	return &Aggregator{last: initial}
}

// Add feeds one reading in arrival order. When the reading's timestamp is
// strictly later than the open bucket's, the bucket is returned as a Sample
// stamped with the bucket's timestamp and ok is true. The reading itself always
// ends up in the open bucket.
func (a *Aggregator) Add(r frame.Reading) (s Sample, ok bool) {
	if a.last.Before(r.Time) {
		if len(a.bucket) > 0 {
			s, ok = a.flush(), true
		}
		a.last = r.Time
		a.bucket = a.bucket[:0]
	}
	a.bucket = append(a.bucket, r)
	return s, ok
}

// Pending returns the number of readings in the open bucket.
// They are dropped when the stream ends.
func (a *Aggregator) Pending() int {
	return len(a.bucket)
}

// Current returns the timestamp of the open bucket
func (a *Aggregator) Current() frame.Timestamp {
	return a.last
}

func (a *Aggregator) flush() Sample {
	var sum1, sum2 float64
	for _, r := range a.bucket {
		sum1 += r.Channel1
		sum2 += r.Channel2
	}
	n := float64(len(a.bucket))
	return Sample{
		Time:     a.last,
		Channel1: sum1 / n,
		Channel2: sum2 / n,
	}
}
