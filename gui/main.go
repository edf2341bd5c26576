package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"chy506r/config"
	"chy506r/gui/control"
	"chy506r/gui/ui"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl := control.New(ctx, cfg, logger)

	// Create the app
	myApp := app.New()
	myWindow := myApp.NewWindow("CHY 506R")
	myWindow.Resize(fyne.NewSize(720, 420))

	// Create the main UI
	mainUI := ui.NewMainUI(myWindow, cfg, ctrl)
	myWindow.SetContent(mainUI.Build())
	myWindow.SetCloseIntercept(func() {
		mainUI.Close()
		myWindow.Close()
	})

	myWindow.ShowAndRun()
}
