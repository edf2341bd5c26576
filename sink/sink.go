// Package sink writes aggregated samples to their destinations.
package sink

import (
	"errors"

	"chy506r/aggregate"
)

// Header is the first line written to every table
const Header = "TIME;T1;T2"

// Sink receives a header once followed by samples in timestamp order.
// WriteSample returns only once the sample is visible to readers of the
// destination.
type Sink interface {
	WriteHeader() error
	WriteSample(aggregate.Sample) error
	Close() error
}

// MirrorError reports that a secondary sink failed after the primary one
// accepted the write
type MirrorError struct {
	Err error
}

func (e *MirrorError) Error() string {
	return "mirror: " + e.Err.Error()
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}

// Multi fans samples out to several sinks in order. The first sink is the
// primary: its error is returned as is and nothing else is written. Errors of
// the other sinks are collected into a *MirrorError after all were tried.
type Multi []Sink

// WriteHeader writes the header to every sink
func (m Multi) WriteHeader() error {
	return m.each(Sink.WriteHeader)
}

// WriteSample writes the sample to every sink
func (m Multi) WriteSample(sample aggregate.Sample) error {
	return m.each(func(s Sink) error { return s.WriteSample(sample) })
}

func (m Multi) each(write func(Sink) error) error {
	if len(m) == 0 {
		return nil
	}
	if err := write(m[0]); err != nil {
		return err
	}

	var errs []error
	for _, s := range m[1:] {
		if err := write(s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &MirrorError{Err: errors.Join(errs...)}
	}
	return nil
}

// Close closes every sink and joins their errors
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
