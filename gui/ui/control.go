package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"chy506r/gui/control"
	"chy506r/serial"
)

// ControlTab is the measurement panel: device and output choosers plus the
// Start, Stop and Plot buttons
type ControlTab struct {
	window fyne.Window
	ctrl   *control.Controller

	deviceSelect *widget.Select
	outputEntry  *widget.Entry
	startBtn     *widget.Button
	stopBtn      *widget.Button
	plotBtn      *widget.Button
	snapshotBtn  *widget.Button
	statusLabel  *widget.Label
	countLabel   *widget.Label
	lastLabel    *widget.Label

	// overwrite already confirmed through the save dialog
	override    string
	stopping    bool
	stopRefresh chan struct{}
}

// NewControlTab creates a new measurement tab
func NewControlTab(window fyne.Window, ctrl *control.Controller, device, output string) *ControlTab {
	c := &ControlTab{
		window:      window,
		ctrl:        ctrl,
		stopRefresh: make(chan struct{}),
	}
	c.deviceSelect = widget.NewSelect(nil, func(string) { c.refresh() })
	c.outputEntry = widget.NewEntry()
	c.outputEntry.SetPlaceHolder("Output file, e.g. measurements.csv")
	c.refreshPorts()
	if device != "" {
		c.deviceSelect.SetSelected(device)
	}
	c.outputEntry.SetText(output)
	c.outputEntry.OnChanged = func(string) { c.refresh() }
	return c
}

// Build constructs the measurement UI
func (c *ControlTab) Build() *fyne.Container {
	rescanBtn := widget.NewButton("Rescan", func() {
		c.refreshPorts()
		c.refresh()
	})
	browseBtn := widget.NewButton("Browse...", c.browseOutput)

	form := widget.NewForm(
		widget.NewFormItem("Device", container.NewBorder(nil, nil, nil, rescanBtn, c.deviceSelect)),
		widget.NewFormItem("Output", container.NewBorder(nil, nil, nil, browseBtn, c.outputEntry)),
	)

	c.startBtn = widget.NewButton("Start", c.start)
	c.startBtn.Importance = widget.SuccessImportance

	c.stopBtn = widget.NewButton("Stop", c.stop)
	c.stopBtn.Importance = widget.DangerImportance

	c.plotBtn = widget.NewButton("Plot", func() {
		if err := c.ctrl.Plot(); err != nil {
			dialog.ShowError(err, c.window)
		}
		c.refresh()
	})

	c.snapshotBtn = widget.NewButton("Save PNG...", c.saveSnapshot)

	buttons := container.NewGridWithColumns(4,
		c.startBtn,
		c.stopBtn,
		c.plotBtn,
		c.snapshotBtn,
	)

	c.statusLabel = widget.NewLabel("Status: Ready")
	c.statusLabel.TextStyle = fyne.TextStyle{Bold: true}
	c.countLabel = widget.NewLabel("Samples: 0")
	c.lastLabel = widget.NewLabel("Last: -")

	statusCard := widget.NewCard("Measurement", "", container.NewVBox(
		c.statusLabel,
		c.countLabel,
		c.lastLabel,
	))

	content := container.NewVBox(
		form,
		widget.NewSeparator(),
		buttons,
		widget.NewSeparator(),
		statusCard,
	)

	c.refresh()
	go c.startAutoRefresh()

	return content
}

// Close stops the refresh loop and the measurement
func (c *ControlTab) Close() {
	close(c.stopRefresh)
	c.ctrl.Close()
}

func (c *ControlTab) refreshPorts() {
	ports, err := serial.ListPorts()
	if err != nil {
		ports = nil
	}
	selected := c.deviceSelect.Selected
	c.deviceSelect.SetOptions(ports)
	if selected != "" {
		c.deviceSelect.SetSelected(selected)
	}
}

func (c *ControlTab) selection() (string, string) {
	return c.deviceSelect.Selected, strings.TrimSpace(c.outputEntry.Text)
}

func (c *ControlTab) browseOutput() {
	save := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, c.window)
			return
		}
		if w == nil {
			return
		}
		path := w.URI().Path()
		w.Close()
		c.override = path
		c.outputEntry.SetText(path)
	}, c.window)
	save.SetFileName("measurements.csv")
	save.Show()
}

func (c *ControlTab) start() {
	device, output := c.selection()
	if control.OutputExists(output) && output != c.override {
		msg := fmt.Sprintf("%s already exists. Overwrite it?", filepath.Base(output))
		dialog.ShowConfirm("Overwrite", msg, func(ok bool) {
			if ok {
				c.doStart(device, output)
			}
		}, c.window)
		return
	}
	c.doStart(device, output)
}

// doStart opens the session off the UI thread; connecting to a broker may
// take up to its timeout
func (c *ControlTab) doStart(device, output string) {
	c.override = ""
	c.startBtn.Disable()
	go func() {
		err := c.ctrl.Start(device, output)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, c.window)
			}
			c.refresh()
		})
	}()
}

// stop waits for the session off the UI thread; the read loop may be
// blocked for up to one read timeout
func (c *ControlTab) stop() {
	c.stopping = true
	c.stopBtn.Disable()
	go func() {
		c.ctrl.Stop()
		fyne.Do(func() {
			c.stopping = false
			c.refresh()
		})
	}()
}

func (c *ControlTab) saveSnapshot() {
	save := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, c.window)
			return
		}
		if w == nil {
			return
		}
		path := w.URI().Path()
		w.Close()
		if err := c.ctrl.Snapshot(path); err != nil {
			dialog.ShowError(err, c.window)
		}
	}, c.window)
	save.SetFileName("temperatures.png")
	save.Show()
}

// refresh mirrors the controller state in the widgets
func (c *ControlTab) refresh() {
	if c.startBtn == nil {
		return
	}

	device, output := c.selection()
	state := c.ctrl.Poll(device, output)

	setEnabled(c.startBtn, state.CanStart)
	setEnabled(c.stopBtn, state.CanStop && !c.stopping)
	setEnabled(c.plotBtn, state.CanPlot)
	setEnabled(c.snapshotBtn, state.Count >= 2)

	c.statusLabel.SetText("Status: " + state.Status)
	c.countLabel.SetText(fmt.Sprintf("Samples: %d", state.Count))
	if s := c.ctrl.Session(); s != nil {
		if stats := s.Stats(); !stats.LastSampleTime.IsZero() {
			c.lastLabel.SetText(fmt.Sprintf("Last: %s  T1=%g  T2=%g",
				stats.LastSample.Time, stats.LastSample.Channel1, stats.LastSample.Channel2))
		}
	}

	if state.Aborted {
		dialog.ShowInformation("Warning", control.AbortMessage, c.window)
	}
}

// startAutoRefresh polls the controller until the tab is closed
func (c *ControlTab) startAutoRefresh() {
	ticker := time.NewTicker(control.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fyne.Do(c.refresh)
		case <-c.stopRefresh:
			return
		}
	}
}

func setEnabled(b *widget.Button, enabled bool) {
	if enabled {
		b.Enable()
	} else {
		b.Disable()
	}
}
