// Package simulator pretends to be a CHY 506R on the far end of a serial
// line: it starts streaming frames on "A" and stops on "B".
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"chy506r/frame"
	"chy506r/serial"
)

// Config defines the simulated device
type Config struct {
	FramesPerSecond float64
	JitterPercent   float64
	Channel1        float64 // starting temperature
	Channel2        float64
	Drift           float64 // max random step per frame
	Status          string
	Clock           func() time.Time
}

// DefaultConfig mimics a device reading room temperature
func DefaultConfig() Config {
	return Config{
		FramesPerSecond: 4,
		JitterPercent:   10,
		Channel1:        21.5,
		Channel2:        23,
		Drift:           0.05,
		Status:          "ST000000",
		Clock:           time.Now,
	}
}

// Simulator answers start and stop commands and emits frames
type Simulator struct {
	port    io.ReadWriter
	config  Config
	logger  *slog.Logger
	random  *rand.Rand
	ch1     float64
	ch2     float64
	frames  atomic.Int64
	running atomic.Bool
}

// New creates a simulator on port
func New(port io.ReadWriter, cfg Config, logger *slog.Logger) *Simulator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Status == "" {
		cfg.Status = "ST000000"
	}
	return &Simulator{
		port:   port,
		config: cfg,
		logger: logger,
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
		ch1:    cfg.Channel1,
		ch2:    cfg.Channel2,
	}
}

// Frames returns the number of frames written
func (s *Simulator) Frames() int64 {
	return s.frames.Load()
}

// Streaming reports whether the last command was a start
func (s *Simulator) Streaming() bool {
	return s.running.Load()
}

// Run serves commands until ctx is cancelled or the port fails
func (s *Simulator) Run(ctx context.Context) error {
	commands := make(chan string)
	readErr := make(chan error, 1)
	go s.readCommands(ctx, commands, readErr)

	pacer := NewPacer(s.config.FramesPerSecond, s.config.JitterPercent)
	timer := time.NewTimer(pacer.Next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case cmd := <-commands:
			s.handleCommand(cmd)
		case <-timer.C:
			timer.Reset(pacer.Next())
			if !s.running.Load() {
				continue
			}
			if err := s.emit(); err != nil {
				return err
			}
		}
	}
}

func (s *Simulator) readCommands(ctx context.Context, commands chan<- string, readErr chan<- error) {
	lines := serial.NewLineReader(s.port)
	for {
		line, err := lines.ReadLine()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, serial.ErrReadTimeout) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			readErr <- err
			return
		}

		select {
		case commands <- strings.TrimSpace(line):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Simulator) handleCommand(cmd string) {
	switch cmd {
	case "A":
		if !s.running.Swap(true) {
			s.logger.Info("Streaming started")
		}
	case "B":
		if s.running.Swap(false) {
			s.logger.Info("Streaming stopped", "frames", s.Frames())
		}
	default:
		s.logger.Warn("Unknown command", "command", cmd)
	}
}

func (s *Simulator) emit() error {
	s.ch1 = s.step(s.ch1)
	s.ch2 = s.step(s.ch2)

	now := s.config.Clock()
	line := frame.Encode(frame.Reading{
		Channel1: s.ch1,
		Channel2: s.ch2,
		Time:     frame.Timestamp{Hour: now.Hour(), Minute: now.Minute(), Second: now.Second()},
		Status:   s.config.Status,
	})

	if _, err := s.port.Write([]byte(line + "\r\n")); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	s.frames.Add(1)
	return nil
}

// step moves a temperature by a random amount and keeps it to millidegrees
func (s *Simulator) step(v float64) float64 {
	if s.config.Drift > 0 {
		v += (s.random.Float64()*2 - 1) * s.config.Drift
	}
	return math.Round(v*1000) / 1000
}
