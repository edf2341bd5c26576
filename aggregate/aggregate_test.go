package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chy506r/frame"
)

func reading(t1, t2 float64, h, m, s int) frame.Reading {
	return frame.Reading{
		Channel1: t1,
		Channel2: t2,
		Time:     frame.Timestamp{Hour: h, Minute: m, Second: s},
	}
}

func TestSingleReadingRoundTrip(t *testing.T) {
	a := New()

	_, ok := a.Add(reading(21.5, -3.25, 10, 0, 0))
	assert.False(t, ok)

	s, ok := a.Add(reading(99, 99, 10, 0, 1))
	require.True(t, ok)
	assert.Equal(t, Sample{
		Time:     frame.Timestamp{Hour: 10, Minute: 0, Second: 0},
		Channel1: 21.5,
		Channel2: -3.25,
	}, s)
}

func TestAveraging(t *testing.T) {
	a := New()
	values := []float64{1, 2, 3, 4, 10}
	for _, v := range values {
		_, ok := a.Add(reading(v, -v, 12, 30, 15))
		require.False(t, ok)
	}
	assert.Equal(t, len(values), a.Pending())

	s, ok := a.Add(reading(0, 0, 12, 30, 16))
	require.True(t, ok)
	assert.InDelta(t, 4.0, s.Channel1, 1e-12)
	assert.InDelta(t, -4.0, s.Channel2, 1e-12)
	assert.Equal(t, frame.Timestamp{Hour: 12, Minute: 30, Second: 15}, s.Time)
}

func TestFlushTriggerIsCarriedOver(t *testing.T) {
	a := New()
	a.Add(reading(1, 1, 0, 0, 0))

	_, ok := a.Add(reading(5, 7, 0, 0, 1))
	require.True(t, ok)
	assert.Equal(t, 1, a.Pending())
	assert.Equal(t, frame.Timestamp{Hour: 0, Minute: 0, Second: 1}, a.Current())

	s, ok := a.Add(reading(0, 0, 0, 0, 2))
	require.True(t, ok)
	assert.Equal(t, 5.0, s.Channel1)
	assert.Equal(t, 7.0, s.Channel2)
}

func TestEarlierTimestampDoesNotFlush(t *testing.T) {
	a := New()
	a.Add(reading(1, 1, 8, 0, 10))

	for _, r := range []frame.Reading{
		reading(3, 3, 8, 0, 10),
		reading(5, 5, 8, 0, 9),
		reading(7, 7, 7, 59, 59),
	} {
		_, ok := a.Add(r)
		assert.False(t, ok)
	}

	s, ok := a.Add(reading(0, 0, 8, 0, 11))
	require.True(t, ok)
	assert.Equal(t, frame.Timestamp{Hour: 8, Minute: 0, Second: 10}, s.Time)
	assert.InDelta(t, 4.0, s.Channel1, 1e-12)
}

func TestMidnightZeroTimestamp(t *testing.T) {
	a := New()
	a.Add(reading(2, 4, 0, 0, 0))

	s, ok := a.Add(reading(0, 0, 0, 0, 1))
	require.True(t, ok)
	assert.Equal(t, frame.Timestamp{}, s.Time)
	assert.Equal(t, 2.0, s.Channel1)
}

func TestMonotonicOutput(t *testing.T) {
	a := New()
	times := []frame.Timestamp{
		{Hour: 1, Minute: 0, Second: 0},
		{Hour: 1, Minute: 0, Second: 0},
		{Hour: 1, Minute: 0, Second: 2},
		{Hour: 1, Minute: 0, Second: 1},
		{Hour: 1, Minute: 0, Second: 3},
		{Hour: 1, Minute: 1, Second: 0},
		{Hour: 0, Minute: 59, Second: 59},
		{Hour: 2, Minute: 0, Second: 0},
	}

	var out []Sample
	for _, ts := range times {
		if s, ok := a.Add(frame.Reading{Channel1: 1, Channel2: 1, Time: ts}); ok {
			out = append(out, s)
		}
	}

	require.Len(t, out, 4)
	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].Time.Before(out[i-1].Time), "sample %d out of order", i)
	}
	assert.Equal(t, 1, a.Pending())
}

func TestNoFlushWithoutLaterTimestamp(t *testing.T) {
	a := New()
	for i := 0; i < 10; i++ {
		_, ok := a.Add(reading(float64(i), 0, 5, 5, 5))
		assert.False(t, ok)
	}
	assert.Equal(t, 10, a.Pending())
}
