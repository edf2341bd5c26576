package simulator

import (
	"math/rand"
	"time"
)

// Pacer spaces frames around a nominal rate with uniform jitter
type Pacer struct {
	period time.Duration
	jitter float64
	random *rand.Rand
}

// NewPacer creates a pacer for framesPerSecond. A non-positive rate falls
// back to one frame per second; jitterPercent widens each interval by up to
// that share of the period in either direction.
func NewPacer(framesPerSecond, jitterPercent float64) *Pacer {
	period := time.Second
	if framesPerSecond > 0 {
		period = time.Duration(float64(time.Second) / framesPerSecond)
	}
	if jitterPercent < 0 {
		jitterPercent = 0
	}
	return &Pacer{
		period: period,
		jitter: jitterPercent / 100,
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Period returns the nominal interval between frames
func (p *Pacer) Period() time.Duration {
	return p.period
}

// Next returns the wait before the next frame
func (p *Pacer) Next() time.Duration {
	if p.jitter == 0 {
		return p.period
	}
	offset := (p.random.Float64()*2 - 1) * p.jitter
	return p.period + time.Duration(float64(p.period)*offset)
}
