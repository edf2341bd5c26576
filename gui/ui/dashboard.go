package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"chy506r/monitoring"
	"chy506r/session"
)

const (
	remoteTimeout = 2 * time.Second
	remoteRows    = 20
	remotePeriod  = 2 * time.Second
)

// DashboardTab follows another instance through its monitoring endpoints
type DashboardTab struct {
	urlEntry   *widget.Entry
	status     *widget.Label
	instance   *widget.Label
	latest     *widget.Label
	details    *widget.Label
	sampleList *widget.List

	mu      sync.Mutex
	samples []monitoring.SampleJSON
	cancel  context.CancelFunc
}

// NewDashboardTab creates a dashboard pointed at apiURL
func NewDashboardTab(apiURL string) *DashboardTab {
	d := &DashboardTab{
		urlEntry: widget.NewEntry(),
		status:   widget.NewLabel("Not connected"),
		instance: widget.NewLabel(""),
		latest:   widget.NewLabelWithStyle("T1 -   T2 -", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true, Bold: true}),
		details:  widget.NewLabel(""),
	}
	d.urlEntry.SetText(apiURL)
	return d
}

// Build lays out the dashboard
func (d *DashboardTab) Build() *fyne.Container {
	d.sampleList = widget.NewList(
		func() int {
			d.mu.Lock()
			defer d.mu.Unlock()
			return len(d.samples)
		},
		func() fyne.CanvasObject {
			return widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})
		},
		func(i widget.ListItemID, item fyne.CanvasObject) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if i < len(d.samples) {
				item.(*widget.Label).SetText(formatRemoteSample(d.samples[len(d.samples)-1-i]))
			}
		},
	)

	follow := widget.NewCheck(fmt.Sprintf("Follow (%s)", remotePeriod), func(on bool) {
		if on {
			d.follow()
		} else {
			d.unfollow()
		}
	})
	refresh := widget.NewButton("Refresh", func() {
		go d.poll(context.Background(), d.client())
	})

	top := container.NewVBox(
		container.NewBorder(nil, nil, widget.NewLabel("Instance URL"), container.NewHBox(refresh, follow), d.urlEntry),
		widget.NewCard("", "", container.NewVBox(d.status, d.instance, d.latest, d.details)),
		widget.NewLabel("Recent samples"),
	)
	return container.NewBorder(top, nil, nil, nil, d.sampleList)
}

// Close stops following the remote instance
func (d *DashboardTab) Close() {
	d.unfollow()
}

func (d *DashboardTab) client() *monitoring.Client {
	return monitoring.NewClient(strings.TrimSpace(d.urlEntry.Text), remoteTimeout)
}

func (d *DashboardTab) follow() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	client := d.client()

	go func() {
		ticker := time.NewTicker(remotePeriod)
		defer ticker.Stop()
		for {
			d.poll(ctx, client)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (d *DashboardTab) unfollow() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// poll runs off the UI goroutine and hands results back through fyne.Do
func (d *DashboardTab) poll(ctx context.Context, client *monitoring.Client) {
	health, err := client.Health(ctx)
	if err != nil {
		if ctx.Err() == nil {
			fyne.Do(func() { d.status.SetText("Unreachable: " + err.Error()) })
		}
		return
	}

	status := fmt.Sprintf("Status: %s", health.Status)
	samples, err := client.Samples(ctx, remoteRows)
	var rows []monitoring.SampleJSON
	switch {
	case err == nil:
		rows = samples.Samples
	case !errors.Is(err, monitoring.ErrNoSamples):
		status += " (samples unavailable: " + err.Error() + ")"
	}

	fyne.Do(func() {
		d.status.SetText(status)
		d.instance.SetText(fmt.Sprintf("%s  v%s  up %s", health.InstanceID, health.Version, formatUptime(health.UptimeSec)))
		d.details.SetText(sessionSummary(health.Session))
		if len(rows) > 0 {
			d.latest.SetText(formatLatest(rows[len(rows)-1]))
		}

		d.mu.Lock()
		d.samples = rows
		d.mu.Unlock()
		d.sampleList.Refresh()
	})
}

func formatLatest(s monitoring.SampleJSON) string {
	return fmt.Sprintf("T1 %.1f °C   T2 %.1f °C   at %s", s.T1, s.T2, s.Time)
}

func formatRemoteSample(s monitoring.SampleJSON) string {
	return fmt.Sprintf("%s  %8.3f  %8.3f", s.Time, s.T1, s.T2)
}

func sessionSummary(s *session.Stats) string {
	if s == nil {
		return "No session"
	}
	summary := fmt.Sprintf("%s on %s: %d samples, %d lines, %d discarded",
		s.State, s.Device, s.Samples, s.LinesRead, s.ProtocolErrors+s.FieldErrors)
	if s.LastError != "" {
		summary += "\nLast error: " + s.LastError
	}
	return summary
}

// formatUptime renders whole seconds as 1h 2m 3s
func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
