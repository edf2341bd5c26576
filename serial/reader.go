package serial

import (
	"bytes"
	"errors"
	"io"
)

// ErrReadTimeout is returned by LineReader when a read yields no data
// within the port's read timeout
var ErrReadTimeout = errors.New("read timeout")

// maxLineLength bounds a line without a terminator
const maxLineLength = 256

// LineReader splits the byte stream of a port into newline terminated lines
type LineReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
}

// NewLineReader creates a line reader over r
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:   r,
		buf: make([]byte, 64),
	}
}

// ReadLine returns the next line including its terminator. When the read
// times out in the middle of a line the partial line is returned as is; when
// it times out with nothing buffered ErrReadTimeout is returned.
func (l *LineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			return l.take(i + 1), nil
		}
		if len(l.pending) >= maxLineLength {
			return l.take(len(l.pending)), nil
		}

		n, err := l.r.Read(l.buf)
		l.pending = append(l.pending, l.buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) && len(l.pending) > 0 {
				return l.take(len(l.pending)), nil
			}
			return "", err
		}
		if n == 0 {
			if len(l.pending) > 0 {
				return l.take(len(l.pending)), nil
			}
			return "", ErrReadTimeout
		}
	}
}

func (l *LineReader) take(n int) string {
	line := string(l.pending[:n])
	l.pending = append(l.pending[:0], l.pending[n:]...)
	return line
}
