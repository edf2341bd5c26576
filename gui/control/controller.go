// Package control holds the measurement state behind the desktop window:
// which buttons are usable, the running session and the gnuplot viewer.
package control

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"chy506r/config"
	"chy506r/plot"
	"chy506r/session"
	"chy506r/sink"
)

// PollInterval is how often the window refreshes its state
const PollInterval = 125 * time.Millisecond

// AbortMessage is shown when a session ends without a stop request
const AbortMessage = "Measurements aborted. Is the device connected to PC?"

// ErrNoSession is returned by operations that need a session
var ErrNoSession = errors.New("no measurement session")

// Viewer is a live chart window
type Viewer interface {
	Start() error
	Running() bool
	Terminate() error
	Close() error
}

// ViewerFactory opens a viewer over a sample table
type ViewerFactory func(dataFile string, cfg config.PlotConfig) (Viewer, error)

// State is a snapshot used to refresh the window
type State struct {
	CanStart bool
	CanStop  bool
	CanPlot  bool
	Running  bool
	Count    int64
	// Aborted is set once, on the first poll after a session stalled
	Aborted bool
	Status  string
}

// Controller owns at most one session and one viewer at a time
type Controller struct {
	cfg       *config.Config
	logger    *slog.Logger
	options   []session.Option
	newViewer ViewerFactory
	ctx       context.Context

	mu       sync.Mutex
	sess     *session.Session
	output   string
	viewer   Viewer
	reported bool
	// starting is set while the session opens its sink and port
	starting bool
}

// New creates a controller; extra options are passed to every session
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...session.Option) *Controller {
	return &Controller{
		cfg:     cfg,
		logger:  logger,
		options: opts,
		newViewer: func(dataFile string, cfg config.PlotConfig) (Viewer, error) {
			return plot.NewLauncher(dataFile, cfg)
		},
		ctx: ctx,
	}
}

// SetViewerFactory replaces the gnuplot launcher
func (c *Controller) SetViewerFactory(f ViewerFactory) {
	c.newViewer = f
}

// OutputExists reports whether starting on path would overwrite a file
func OutputExists(path string) bool {
	if path == "" || path == sink.Stdout {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (c *Controller) runningLocked() bool {
	return c.starting || (c.sess != nil && c.sess.Running())
}

func (c *Controller) viewerRunningLocked() bool {
	return c.viewer != nil && c.viewer.Running()
}

// Start begins a session on device writing to output. Opening the sink may
// wait for a broker; Poll keeps answering meanwhile.
func (c *Controller) Start(device, output string) error {
	c.mu.Lock()
	if c.runningLocked() {
		c.mu.Unlock()
		return session.ErrAlreadyStarted
	}

	id := uuid.NewString()
	mqttCfg := c.cfg.MQTT
	opts := append([]session.Option{
		session.WithID(id),
		session.WithLogger(c.logger),
		session.WithSinkOpener(func(path string) (sink.Sink, error) {
			return sink.Open(path, mqttCfg, id)
		}),
	}, c.options...)

	sess := session.New(session.Config{
		Device:      device,
		Output:      output,
		ReadTimeout: c.cfg.Device.GetReadTimeout(),
	}, opts...)

	c.sess = sess
	c.output = output
	c.reported = false
	c.starting = true
	c.mu.Unlock()

	err := sess.Start(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		// Start failures are returned here, not reported again by Poll
		c.reported = true
	}
	return err
}

// Stop asks the session to stop and waits for it to release the port
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Stop()
	sess.Wait()
}

// Plot opens the live chart over the current output
func (c *Controller) Plot() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return ErrNoSession
	}
	if c.viewerRunningLocked() {
		return nil
	}
	if c.viewer != nil {
		c.viewer.Close()
		c.viewer = nil
	}

	viewer, err := c.newViewer(c.output, c.cfg.Plot)
	if err != nil {
		return err
	}
	if err := viewer.Start(); err != nil {
		viewer.Close()
		return err
	}
	c.viewer = viewer
	return nil
}

// Snapshot renders the current output to a PNG file
func (c *Controller) Snapshot(pngPath string) error {
	c.mu.Lock()
	output := c.output
	c.mu.Unlock()

	if output == "" {
		return ErrNoSession
	}
	return plot.RenderFile(output, pngPath, c.cfg.Plot)
}

// Session returns the current or last session, nil before the first start
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Poll computes the button states for the selected device and output
func (c *Controller) Poll(device, output string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	running := c.runningLocked()
	var state State
	state.Running = running
	state.CanStart = !running && device != "" && output != ""
	state.CanStop = running
	state.Status = "Ready"

	if c.sess == nil {
		return state
	}

	state.Count = c.sess.Count()
	state.CanPlot = running && state.Count >= 2 && !c.viewerRunningLocked()

	switch outcome := c.sess.Outcome(); {
	case c.starting:
		state.Status = "Starting"
	case outcome == session.OutcomeRunning:
		state.Status = "Measuring"
	case outcome == session.OutcomeAborted:
		state.Status = "Aborted"
		if !c.reported && !c.sess.Done() {
			state.Aborted = true
			c.reported = true
		}
	default:
		state.Status = string(outcome)
	}
	return state
}

// Close stops the session and the viewer
func (c *Controller) Close() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewer != nil {
		if c.viewer.Running() {
			c.viewer.Terminate()
		}
		c.viewer.Close()
		c.viewer = nil
	}
}
