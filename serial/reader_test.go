package serial

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestLineReaderSplitsChunks(t *testing.T) {
	port := NewMockPort("/dev/mock", 20*time.Millisecond)
	port.FeedRaw([]byte("first li"))
	port.FeedRaw([]byte("ne\r\nsecond\nthi"))
	port.FeedRaw([]byte("rd\n"))

	lr := NewLineReader(port)
	for _, want := range []string{"first line\r\n", "second\n", "third\n"} {
		line, err := lr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestLineReaderTimeout(t *testing.T) {
	port := NewMockPort("/dev/mock", 10*time.Millisecond)
	lr := NewLineReader(port)

	_, err := lr.ReadLine()
	assert.True(t, errors.Is(err, ErrReadTimeout))
}

func TestLineReaderPartialLineOnTimeout(t *testing.T) {
	port := NewMockPort("/dev/mock", 10*time.Millisecond)
	port.FeedRaw([]byte("+0003E8 +00"))
	lr := NewLineReader(port)

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "+0003E8 +00", line)

	_, err = lr.ReadLine()
	assert.True(t, errors.Is(err, ErrReadTimeout))
}

func TestLineReaderEOF(t *testing.T) {
	lr := NewLineReader(strings.NewReader("one\ntwo"))

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "one\n", line)

	line, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "two", line)

	_, err = lr.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestLineReaderBoundsUnterminatedLines(t *testing.T) {
	long := strings.Repeat("x", maxLineLength+10)
	lr := NewLineReader(strings.NewReader(long + "\n"))

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, maxLineLength)

	line, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 10)+"\n", line)
}

func TestMockPortCloseUnblocksRead(t *testing.T) {
	port := NewMockPort("/dev/mock", 0)
	done := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 8))
		done <- err
	}()

	require.NoError(t, port.Close())
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("read did not return after close")
	}
}

func TestMockPortEndInput(t *testing.T) {
	port := NewMockPort("/dev/mock", time.Second)
	port.Feed("abc")
	port.EndInput()

	lr := NewLineReader(port)
	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "abc\r\n", line)

	_, err = lr.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestPortWithStats(t *testing.T) {
	port := NewMockPort("/dev/mock", 10*time.Millisecond)
	stats := NewPortWithStats(port)
	port.Feed("hello")

	buf := make([]byte, 64)
	n, err := stats.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = stats.Write([]byte("A\n"))
	require.NoError(t, err)
	stats.LineRead()

	port.SetWriteError(errors.New("boom"))
	_, err = stats.Write([]byte("B\n"))
	assert.Error(t, err)

	s := stats.Stats()
	assert.Equal(t, int64(7), s.BytesRead)
	assert.Equal(t, int64(2), s.BytesSent)
	assert.Equal(t, int64(1), s.LinesRead)
	assert.Equal(t, int64(1), s.Errors)
	assert.False(t, s.LastLineTime.IsZero())
	assert.Equal(t, [][]byte{[]byte("A\n")}, port.GetWrites())
	assert.Equal(t, "A\n", string(port.GetWrittenData()))
}

func TestThermometerConfig(t *testing.T) {
	cfg := ThermometerConfig("/dev/ttyUSB0", 4*time.Second)
	assert.Equal(t, PortConfig{
		Device:      "/dev/ttyUSB0",
		BaudRate:    1200,
		DataBits:    7,
		StopBits:    1,
		Parity:      "even",
		ReadTimeout: 4 * time.Second,
	}, cfg)
}

func TestLineMode(t *testing.T) {
	mode, err := lineMode(ThermometerConfig("/dev/ttyUSB0", time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1200, mode.BaudRate)
	assert.Equal(t, 7, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	cfg := ThermometerConfig("/dev/ttyUSB0", time.Second)
	cfg.Parity = "sometimes"
	_, err = lineMode(cfg)
	assert.Error(t, err)

	cfg = ThermometerConfig("/dev/ttyUSB0", time.Second)
	cfg.StopBits = 3
	_, err = lineMode(cfg)
	assert.Error(t, err)
}
