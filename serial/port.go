package serial

import (
	"io"
	"sync"
	"time"
)

// Framing used by the CHY 506R
const (
	DefaultBaudRate = 1200
	DefaultDataBits = 7
	DefaultStopBits = 1
	DefaultParity   = "even"
)

// PortConfig contains serial port configuration settings
type PortConfig struct {
	Device      string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string // "none", "odd", "even", "mark", "space"
	ReadTimeout time.Duration
}

// ThermometerConfig returns the fixed 7E1 1200 baud framing for device
func ThermometerConfig(device string, readTimeout time.Duration) PortConfig {
	return PortConfig{
		Device:      device,
		BaudRate:    DefaultBaudRate,
		DataBits:    DefaultDataBits,
		StopBits:    DefaultStopBits,
		Parity:      DefaultParity,
		ReadTimeout: readTimeout,
	}
}

// Port defines the interface for serial port operations.
// A Read that times out returns 0 bytes and a nil error.
type Port interface {
	io.ReadWriteCloser

	// Flush waits until all output has been transmitted
	Flush() error

	// Device returns the device path
	Device() string

	// IsOpen returns true if the port is currently open
	IsOpen() bool
}

// Stats tracks statistics for a serial port
type Stats struct {
	BytesRead    int64
	BytesSent    int64
	LinesRead    int64
	Errors       int64
	LastLineTime time.Time
	OpenedAt     time.Time
}

// PortWithStats wraps a Port with statistics tracking.
// Stats may be read from another goroutine.
type PortWithStats struct {
	Port
	mu    sync.Mutex
	stats Stats
}

// NewPortWithStats creates a new port wrapper with statistics
func NewPortWithStats(port Port) *PortWithStats {
	return &PortWithStats{
		Port: port,
		stats: Stats{
			OpenedAt: time.Now(),
		},
	}
}

// Read reads from the port and tracks statistics
func (p *PortWithStats) Read(data []byte) (int, error) {
	n, err := p.Port.Read(data)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.Errors++
	}
	p.stats.BytesRead += int64(n)
	return n, err
}

// Write writes data to the port and tracks statistics
func (p *PortWithStats) Write(data []byte) (int, error) {
	n, err := p.Port.Write(data)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.Errors++
		return n, err
	}
	p.stats.BytesSent += int64(n)
	return n, nil
}

// LineRead increments the lines read counter
func (p *PortWithStats) LineRead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.LinesRead++
	p.stats.LastLineTime = time.Now()
}

// Stats returns a copy of the current statistics
func (p *PortWithStats) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
