// Package session drives one measurement run against a CHY 506R thermometer.
//
// A Session owns the serial port and the sample sink for its whole lifetime.
// Its read loop runs in a dedicated goroutine; Stop, Done, Count and Running
// may be called from any other goroutine while it runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chy506r/aggregate"
	"chy506r/frame"
	"chy506r/serial"
	"chy506r/sink"
)

// Device commands
const (
	StartCommand = "A\n"
	StopCommand  = "B\n"
)

// DefaultReadTimeout is used when Config.ReadTimeout is zero
const DefaultReadTimeout = 4 * time.Second

// ErrAlreadyStarted is returned by a second call to Start
var ErrAlreadyStarted = errors.New("session already started")

// Outcome describes how a session ended
type Outcome string

const (
	OutcomeIdle        Outcome = "idle"
	OutcomeRunning     Outcome = "running"
	OutcomeStopped     Outcome = "stopped"
	OutcomeAborted     Outcome = "aborted"
	OutcomeInterrupted Outcome = "interrupted"
)

// PortOpener opens the serial port for a session
type PortOpener func(serial.PortConfig) (serial.Port, error)

// SinkOpener opens the sample destination for a session
type SinkOpener func(path string) (sink.Sink, error)

// Config binds a session to its device and destination
type Config struct {
	Device      string
	Output      string
	ReadTimeout time.Duration
}

// Option customizes a Session
type Option func(*Session)

// WithPortOpener replaces the serial port factory
func WithPortOpener(open PortOpener) Option {
	return func(s *Session) { s.openPort = open }
}

// WithSinkOpener replaces the sink factory
func WithSinkOpener(open SinkOpener) Option {
	return func(s *Session) { s.openSink = open }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithID overrides the generated session ID
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Stats is a snapshot of a session's progress
type Stats struct {
	ID             string           `json:"id"`
	Device         string           `json:"device"`
	Output         string           `json:"output"`
	State          Outcome          `json:"state"`
	Running        bool             `json:"running"`
	Done           bool             `json:"done"`
	Samples        int64            `json:"samples"`
	LinesRead      int64            `json:"lines_read"`
	BytesRead      int64            `json:"bytes_read"`
	ProtocolErrors int64            `json:"protocol_errors"`
	FieldErrors    int64            `json:"field_errors"`
	MirrorErrors   int64            `json:"mirror_errors"`
	LastSample     aggregate.Sample `json:"-"`
	LastStatus     string           `json:"last_status,omitempty"`
	LastSampleTime time.Time        `json:"last_sample_time"`
	StartedAt      time.Time        `json:"started_at"`
	LastError      string           `json:"last_error,omitempty"`
}

// Session is one run of the device reader, from Start to loop exit.
// It cannot be restarted.
type Session struct {
	id       string
	config   Config
	openPort PortOpener
	openSink SinkOpener
	logger   *slog.Logger
	finished chan struct{}

	// Guarded by mu
	mu            sync.Mutex
	started       bool
	running       bool
	done          bool
	stopRequested bool
	count         int64
	outcome       Outcome
	err           error
	port          *serial.PortWithStats
	stats         Stats
}

// New creates a session bound to a device, an output and a read timeout
func New(cfg Config, opts ...Option) *Session {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	s := &Session{
		id:       uuid.NewString(),
		config:   cfg,
		openPort: serial.OpenDevice,
		openSink: openCSVSink,
		logger:   slog.Default(),
		finished: make(chan struct{}),
		outcome:  OutcomeIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id, "device", cfg.Device)
	return s
}

func openCSVSink(path string) (sink.Sink, error) {
	out, err := sink.OpenCSV(path)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Start opens the port and the sink, asks the device to stream and runs the
// read loop in its own goroutine. Cancelling ctx interrupts the loop at the
// next line boundary.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	port, out, err := s.open()
	if err != nil {
		s.finish(OutcomeAborted, err)
		close(s.finished)
		return err
	}

	if _, err := port.Write([]byte(StartCommand)); err != nil {
		err = fmt.Errorf("failed to send start command: %w", err)
		s.release(port, out, nil)
		s.finish(OutcomeAborted, err)
		close(s.finished)
		return err
	}

	s.mu.Lock()
	s.running = true
	s.outcome = OutcomeRunning
	s.port = port
	s.stats.StartedAt = time.Now()
	s.mu.Unlock()

	if err := s.mirrored(out.WriteHeader()); err != nil {
		err = fmt.Errorf("failed to write header: %w", err)
		s.release(port, out, nil)
		s.finish(OutcomeAborted, err)
		close(s.finished)
		return err
	}

	s.logger.Info("Session started",
		"output", s.config.Output,
		"read_timeout", s.config.ReadTimeout,
	)

	go s.run(ctx, port, out)
	return nil
}

func (s *Session) open() (*serial.PortWithStats, sink.Sink, error) {
	out, err := s.openSink(s.config.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open output: %w", err)
	}

	port, err := s.openPort(serial.ThermometerConfig(s.config.Device, s.config.ReadTimeout))
	if err != nil {
		out.Close()
		return nil, nil, fmt.Errorf("failed to open device: %w", err)
	}

	return serial.NewPortWithStats(port), out, nil
}

// Stop asks the read loop to finish after the line it is reading.
// It does not block.
func (s *Session) Stop() {
	s.mu.Lock()
	already := s.stopRequested
	s.stopRequested = true
	s.mu.Unlock()

	if !already {
		s.logger.Info("Stop requested")
	}
}

// Done reports whether the loop ended because Stop was observed
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Count returns the number of samples written so far
func (s *Session) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Running reports whether the read loop is still alive
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Outcome returns the current state, final once Wait has returned
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Err returns the error that ended the session, if any. A stall or an
// explicit stop is not an error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Finished is closed once the read loop has exited and released the port
func (s *Session) Finished() <-chan struct{} {
	return s.finished
}

// Wait blocks until the read loop has exited and returns the outcome.
// It returns immediately for a session that failed to start.
func (s *Session) Wait() Outcome {
	<-s.finished
	return s.Outcome()
}

// Stats returns a snapshot of the session's progress
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.ID = s.id
	stats.Device = s.config.Device
	stats.Output = s.config.Output
	stats.State = s.outcome
	stats.Running = s.running
	stats.Done = s.done
	stats.Samples = s.count
	if s.port != nil {
		ps := s.port.Stats()
		stats.LinesRead = ps.LinesRead
		stats.BytesRead = ps.BytesRead
	}
	if s.err != nil {
		stats.LastError = s.err.Error()
	}
	return stats
}

func (s *Session) finish(outcome Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.outcome = outcome
	s.err = err
}

// release tells the device to stop streaming and closes port and sink
func (s *Session) release(port *serial.PortWithStats, out sink.Sink, agg *aggregate.Aggregator) {
	if _, err := port.Write([]byte(StopCommand)); err != nil {
		s.logger.Warn("Failed to send stop command", "error", err)
	} else if err := port.Flush(); err != nil {
		s.logger.Debug("Failed to drain port", "error", err)
	}

	if agg != nil && agg.Pending() > 0 {
		s.logger.Debug("Discarding incomplete bucket",
			"time", agg.Current().String(),
			"readings", agg.Pending(),
		)
	}

	if err := out.Close(); err != nil {
		s.logger.Warn("Failed to close output", "error", err)
	}
	if err := port.Close(); err != nil {
		s.logger.Warn("Failed to close device", "error", err)
	}
}

func (s *Session) run(ctx context.Context, port *serial.PortWithStats, out sink.Sink) {
	defer close(s.finished)

	agg := aggregate.New()
	outcome, err := s.loop(ctx, port, out, agg)

	s.release(port, out, agg)
	s.finish(outcome, err)

	s.logger.Info("Session finished",
		"outcome", outcome,
		"samples", s.Count(),
	)
}

func (s *Session) loop(ctx context.Context, port *serial.PortWithStats, out sink.Sink, agg *aggregate.Aggregator) (Outcome, error) {
	lines := serial.NewLineReader(port)

	// Stop may have been called while the port was opening
	if s.observeStop() {
		return OutcomeStopped, nil
	}

	for {
		if ctx.Err() != nil {
			return OutcomeInterrupted, nil
		}

		line, err := lines.ReadLine()
		if err != nil {
			if s.observeStop() {
				return OutcomeStopped, nil
			}
			if ctx.Err() != nil {
				return OutcomeInterrupted, nil
			}
			if errors.Is(err, serial.ErrReadTimeout) || errors.Is(err, io.EOF) {
				s.logger.Warn("Timeout occurred, is the device connected to your PC?",
					"timeout", s.config.ReadTimeout,
				)
				return OutcomeAborted, nil
			}
			s.logger.Error("Read failed", "error", err)
			return OutcomeAborted, fmt.Errorf("failed to read from device: %w", err)
		}
		port.LineRead()

		if err := s.handleLine(line, out, agg); err != nil {
			s.logger.Error("Output error", "error", err)
			return OutcomeAborted, err
		}

		if s.observeStop() {
			return OutcomeStopped, nil
		}
	}
}

// observeStop marks the session done if Stop has been called
func (s *Session) observeStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopRequested {
		s.done = true
	}
	return s.stopRequested
}

func (s *Session) handleLine(line string, out sink.Sink, agg *aggregate.Aggregator) error {
	reading, err := frame.Decode(line)
	if err != nil {
		var lengthErr *frame.LengthError
		s.mu.Lock()
		if errors.As(err, &lengthErr) {
			s.stats.ProtocolErrors++
		} else {
			s.stats.FieldErrors++
		}
		s.mu.Unlock()
		s.logger.Warn("Discarding frame", "error", err)
		return nil
	}

	sample, ok := agg.Add(reading)
	if !ok {
		return nil
	}

	if err := s.mirrored(out.WriteSample(sample)); err != nil {
		return fmt.Errorf("failed to write sample %s: %w", sample.Time, err)
	}

	s.mu.Lock()
	s.count++
	s.stats.LastSample = sample
	s.stats.LastStatus = reading.Status
	s.stats.LastSampleTime = time.Now()
	s.mu.Unlock()

	s.logger.Debug("Sample written",
		"time", sample.Time.String(),
		"t1", sample.Channel1,
		"t2", sample.Channel2,
	)
	return nil
}

// mirrored absorbs failures of secondary sinks. The primary table already
// holds the data, so they are counted and logged instead of ending the run.
func (s *Session) mirrored(err error) error {
	var mirrorErr *sink.MirrorError
	if !errors.As(err, &mirrorErr) {
		return err
	}
	s.mu.Lock()
	s.stats.MirrorErrors++
	s.mu.Unlock()
	s.logger.Warn("Mirror write failed", "error", mirrorErr.Err)
	return nil
}
