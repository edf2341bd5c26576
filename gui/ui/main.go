package ui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"chy506r/config"
	"chy506r/gui/control"
)

// MainUI represents the main user interface
type MainUI struct {
	window    fyne.Window
	control   *ControlTab
	dashboard *DashboardTab
}

// NewMainUI creates a new main UI
func NewMainUI(window fyne.Window, cfg *config.Config, ctrl *control.Controller) *MainUI {
	return &MainUI{
		window:    window,
		control:   NewControlTab(window, ctrl, cfg.Device.Path, cfg.Output.Path),
		dashboard: NewDashboardTab(fmt.Sprintf("http://localhost:%d", cfg.Monitoring.Port)),
	}
}

// Build constructs the UI layout
func (m *MainUI) Build() *fyne.Container {
	tabs := container.NewAppTabs(
		container.NewTabItem("Measurement", m.control.Build()),
		container.NewTabItem("Remote Dashboard", m.dashboard.Build()),
	)

	return container.NewBorder(
		m.buildHeader(),
		nil,
		nil,
		nil,
		tabs,
	)
}

// Close stops background work before the window goes away
func (m *MainUI) Close() {
	m.control.Close()
	m.dashboard.Close()
}

// buildHeader creates the header section
func (m *MainUI) buildHeader() *fyne.Container {
	title := widget.NewLabelWithStyle("CHY 506R Thermometer",
		fyne.TextAlignCenter,
		fyne.TextStyle{Bold: true})

	return container.NewVBox(
		title,
		widget.NewSeparator(),
	)
}
