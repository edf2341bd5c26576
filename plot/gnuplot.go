// Package plot shows the growing sample table as a chart, either live in a
// gnuplot window or as a PNG snapshot.
package plot

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"chy506r/config"
)

// ErrNotStarted is returned when the viewer process has not been started
var ErrNotStarted = errors.New("plotter not started")

const scriptTemplate = `# Bindings
bind "Close" "reread_loop = 0"
reread_loop = 1

# Plot Title
set title %q

# X axis settings
set xdata time
set timefmt "%%H:%%M:%%S"
set format x "%%H:%%M:%%S"
set xtics rotate by 45 right

# Y axis
set yrange [%s:%s]

# Grid
set grid

# draw chart from a file
set datafile separator ';'
plot file using "TIME":"T1" with lines title "T1", \
     file using "TIME":"T2" with lines title "T2"
pause 1
if(reread_loop==1) reread
`

// Script returns the gnuplot program that redraws the table every second
// until its window is closed
func Script(cfg config.PlotConfig) string {
	return fmt.Sprintf(scriptTemplate,
		cfg.Title,
		strconv.FormatFloat(cfg.YMin, 'f', -1, 64),
		strconv.FormatFloat(cfg.YMax, 'f', -1, 64),
	)
}

// Launcher runs gnuplot as a child process over a sample table
type Launcher struct {
	dataFile   string
	gnuplot    string
	scriptFile string

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// NewLauncher writes the gnuplot script to a temporary file
func NewLauncher(dataFile string, cfg config.PlotConfig) (*Launcher, error) {
	f, err := os.CreateTemp("", "chy506r-*.gp")
	if err != nil {
		return nil, fmt.Errorf("failed to create gnuplot script: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(Script(cfg)); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write gnuplot script: %w", err)
	}

	gnuplot := cfg.Gnuplot
	if gnuplot == "" {
		gnuplot = "gnuplot"
	}

	return &Launcher{
		dataFile:   dataFile,
		gnuplot:    gnuplot,
		scriptFile: f.Name(),
	}, nil
}

// ScriptFile returns the path of the generated script
func (l *Launcher) ScriptFile() string {
	return l.scriptFile
}

// Cmd returns the full command line used to run the viewer
func (l *Launcher) Cmd() []string {
	return []string{l.gnuplot, "-e", "file=" + quote(l.dataFile), l.scriptFile}
}

// Start launches the viewer. A viewer that is still open is left alone.
func (l *Launcher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.runningLocked() {
		return nil
	}

	args := l.Cmd()
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.gnuplot, err)
	}

	exited := make(chan struct{})
	l.cmd = cmd
	l.exited = exited
	l.err = nil

	go func() {
		err := cmd.Wait()
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(exited)
	}()

	return nil
}

// Running reports whether the viewer process is alive
func (l *Launcher) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runningLocked()
}

func (l *Launcher) runningLocked() bool {
	if l.exited == nil {
		return false
	}
	select {
	case <-l.exited:
		return false
	default:
		return true
	}
}

// Terminate kills the viewer process
func (l *Launcher) Terminate() error {
	l.mu.Lock()
	cmd := l.cmd
	running := l.runningLocked()
	l.mu.Unlock()

	if cmd == nil {
		return ErrNotStarted
	}
	if !running {
		return nil
	}
	return cmd.Process.Kill()
}

// Wait blocks until the viewer exits and returns its exit error
func (l *Launcher) Wait() error {
	l.mu.Lock()
	exited := l.exited
	l.mu.Unlock()

	if exited == nil {
		return ErrNotStarted
	}
	<-exited

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close terminates the viewer and removes the script file
func (l *Launcher) Close() error {
	if l.Running() {
		l.Terminate()
		l.Wait()
	}
	return os.Remove(l.scriptFile)
}

// quote renders s as a gnuplot single-quoted string, where '' stands for '
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
