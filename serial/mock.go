package serial

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// MockPort implements Port for testing purposes. Input queued with Feed is
// handed out by Read; a Read with nothing queued waits for the read timeout
// and returns 0 bytes, like a real port.
type MockPort struct {
	mu          sync.Mutex
	buffer      bytes.Buffer
	device      string
	isOpen      bool
	writes      [][]byte
	writeErr    error // If set, Write will return this error
	readTimeout time.Duration

	input  chan []byte
	rest   []byte
	closed  chan struct{}
	eof     bool
	blocked bool
}

// NewMockPort creates a new mock port
func NewMockPort(device string, readTimeout time.Duration) *MockPort {
	return &MockPort{
		device:      device,
		isOpen:      true,
		writes:      make([][]byte, 0),
		readTimeout: readTimeout,
		input:       make(chan []byte, 1024),
		closed:      make(chan struct{}),
	}
}

// Feed queues each line for reading, appending "\r\n"
func (p *MockPort) Feed(lines ...string) {
	for _, line := range lines {
		p.input <- []byte(line + "\r\n")
	}
}

// FeedRaw queues raw bytes for reading
func (p *MockPort) FeedRaw(data []byte) {
	p.input <- append([]byte(nil), data...)
}

// EndInput makes Read return io.EOF once queued input is consumed
func (p *MockPort) EndInput() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eof = true
}

// Blocked reports whether a Read is waiting for input
func (p *MockPort) Blocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocked
}

// Read returns queued input or times out
func (p *MockPort) Read(data []byte) (int, error) {
	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if len(p.rest) > 0 {
		n := copy(data, p.rest)
		p.rest = p.rest[n:]
		p.mu.Unlock()
		return n, nil
	}
	eof := p.eof
	p.mu.Unlock()

	var timeout <-chan time.Time
	if p.readTimeout > 0 {
		timer := time.NewTimer(p.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case chunk := <-p.input:
		n := copy(data, chunk)
		p.mu.Lock()
		p.rest = chunk[n:]
		p.mu.Unlock()
		return n, nil
	default:
	}
	if eof {
		return 0, io.EOF
	}

	p.mu.Lock()
	p.blocked = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.blocked = false
		p.mu.Unlock()
	}()

	select {
	case chunk := <-p.input:
		n := copy(data, chunk)
		p.mu.Lock()
		p.rest = chunk[n:]
		p.mu.Unlock()
		return n, nil
	case <-timeout:
		return 0, nil
	case <-p.closed:
		return 0, ErrPortClosed
	}
}

// Write writes data to the mock port buffer
func (p *MockPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isOpen {
		return 0, ErrPortClosed
	}

	if p.writeErr != nil {
		return 0, p.writeErr
	}

	// Store a copy of the data
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	p.writes = append(p.writes, dataCopy)

	return p.buffer.Write(data)
}

// Close closes the mock port
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isOpen {
		p.isOpen = false
		close(p.closed)
	}
	return nil
}

// Flush is a no-op for the mock port
func (p *MockPort) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isOpen {
		return ErrPortClosed
	}
	return nil
}

// Device returns the mock device path
func (p *MockPort) Device() string {
	return p.device
}

// IsOpen returns true if the mock port is open
func (p *MockPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOpen
}

// GetWrittenData returns all data written to the mock port
func (p *MockPort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buffer.Bytes()...)
}

// GetWrites returns all individual write operations
func (p *MockPort) GetWrites() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		result[i] = make([]byte, len(w))
		copy(result[i], w)
	}
	return result
}

// SetWriteError sets an error to be returned on subsequent writes
func (p *MockPort) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}
