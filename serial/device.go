package serial

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// ErrPortClosed is returned by I/O on a closed port
var ErrPortClosed = errors.New("port is closed")

// DevicePort is a Port backed by a serial line
type DevicePort struct {
	line   serial.Port
	device string
	closed bool
}

// Open opens the serial line described by config and discards anything the
// device sent before the port was opened.
func Open(config PortConfig) (*DevicePort, error) {
	mode, err := lineMode(config)
	if err != nil {
		return nil, err
	}

	line, err := serial.Open(config.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", config.Device, err)
	}

	if config.ReadTimeout > 0 {
		if err := line.SetReadTimeout(config.ReadTimeout); err != nil {
			line.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", config.Device, err)
		}
	}
	if err := line.ResetInputBuffer(); err != nil {
		line.Close()
		return nil, fmt.Errorf("failed to reset input of %s: %w", config.Device, err)
	}

	return &DevicePort{line: line, device: config.Device}, nil
}

// lineMode maps a PortConfig onto the driver's mode, rejecting framings the
// driver would otherwise silently replace
func lineMode(config PortConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
	}

	switch config.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", config.StopBits)
	}

	switch config.Parity {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", config.Parity)
	}

	return mode, nil
}

// Read returns 0 bytes and no error when nothing arrives within the read
// timeout
func (p *DevicePort) Read(data []byte) (int, error) {
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.line.Read(data)
}

func (p *DevicePort) Write(data []byte) (int, error) {
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.line.Write(data)
}

// Close releases the line. Closing twice is a no-op.
func (p *DevicePort) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.line.Close()
}

// Flush blocks until written commands have left the UART
func (p *DevicePort) Flush() error {
	if p.closed {
		return ErrPortClosed
	}
	return p.line.Drain()
}

func (p *DevicePort) Device() string {
	return p.device
}

func (p *DevicePort) IsOpen() bool {
	return !p.closed
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
