package serial

import (
	"fmt"
	"os"
)

// CapturePort replays a file of recorded device output. Commands written to
// it are dropped and Read returns io.EOF at the end of the recording.
type CapturePort struct {
	file   *os.File
	device string
	isOpen bool
}

// OpenCapture opens a recording for replay
func OpenCapture(path string) (*CapturePort, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	return &CapturePort{
		file:   f,
		device: path,
		isOpen: true,
	}, nil
}

// Read reads recorded bytes
func (p *CapturePort) Read(data []byte) (int, error) {
	if !p.isOpen {
		return 0, ErrPortClosed
	}
	return p.file.Read(data)
}

// Write discards device commands
func (p *CapturePort) Write(data []byte) (int, error) {
	if !p.isOpen {
		return 0, ErrPortClosed
	}
	return len(data), nil
}

// Close closes the recording
func (p *CapturePort) Close() error {
	if !p.isOpen {
		return nil
	}
	p.isOpen = false
	return p.file.Close()
}

// Flush is a no-op for a recording
func (p *CapturePort) Flush() error {
	return nil
}

// Device returns the recording path
func (p *CapturePort) Device() string {
	return p.device
}

// IsOpen returns true if the recording is open
func (p *CapturePort) IsOpen() bool {
	return p.isOpen
}

// OpenDevice opens the thermometer named by config.Device. A regular file is
// replayed as a capture, anything else is opened as a serial port.
func OpenDevice(config PortConfig) (Port, error) {
	if info, err := os.Stat(config.Device); err == nil && info.Mode().IsRegular() {
		capture, err := OpenCapture(config.Device)
		if err != nil {
			return nil, err
		}
		return capture, nil
	}
	port, err := Open(config)
	if err != nil {
		return nil, err
	}
	return port, nil
}
