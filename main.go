package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"chy506r/config"
	"chy506r/monitoring"
	"chy506r/notify"
	"chy506r/plot"
	"chy506r/serial"
	"chy506r/session"
	"chy506r/sink"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	device := flag.String("device", "", "Serial device of the thermometer, or a recorded capture file (overrides config)")
	outputPath := flag.String("output", "", "Output table, \"-\" for stdout (overrides config)")
	timeout := flag.Int("timeout", 0, "Read timeout in seconds (overrides config)")
	showPlot := flag.Bool("plot", false, "Open a live gnuplot window over the output")
	pngPath := flag.String("png", "", "Render the output to this PNG file when the session ends")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	listPorts := flag.Bool("list-ports", false, "List available serial ports and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Display version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "CHY506R - two-channel thermometer reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s -device /dev/ttyUSB0 -output measurements.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config config.json -plot\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config config.json -validate\n", os.Args[0])
	}

	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("CHY506R version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Handle list-ports flag
	if *listPorts {
		ports, err := serial.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Available serial ports:")
		if len(ports) == 0 {
			fmt.Println("  (none found)")
		} else {
			for _, port := range ports {
				fmt.Printf("  %s\n", port)
			}
		}
		os.Exit(0)
	}

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Command line overrides
	if *device != "" {
		cfg.Device.Path = *device
	}
	if *outputPath != "" {
		cfg.Output.Path = *outputPath
	}
	if *timeout > 0 {
		cfg.Device.ReadTimeoutSec = *timeout
	}
	if *pngPath != "" {
		cfg.Plot.PNGPath = *pngPath
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n  %v\n", err)
		os.Exit(1)
	}

	// Handle validate flag
	if *validate {
		fmt.Println("Configuration is valid")
		fmt.Printf("  Instance: %s\n", cfg.App.InstanceID)
		fmt.Printf("  Device: %s (timeout %ds)\n", cfg.Device.Path, cfg.Device.ReadTimeoutSec)
		fmt.Printf("  Output: %s\n", cfg.Output.Path)
		if cfg.MQTT.Enabled() {
			fmt.Printf("  MQTT: %s topic %s\n", cfg.MQTT.Server, cfg.MQTT.Topic)
		}
		os.Exit(0)
	}

	// Setup logging
	logger := setupLogging(cfg, *debug)
	slog.SetDefault(logger)

	logger.Info("CHY506R starting",
		"version", version,
		"instance", cfg.App.InstanceID,
		"device", cfg.Device.Path,
	)

	os.Exit(run(cfg, *showPlot, logger))
}

func run(cfg *config.Config, showPlot bool, logger *slog.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := uuid.NewString()
	sess := session.New(
		session.Config{
			Device:      cfg.Device.Path,
			Output:      cfg.Output.Path,
			ReadTimeout: cfg.Device.GetReadTimeout(),
		},
		session.WithID(id),
		session.WithLogger(logger),
		session.WithSinkOpener(func(path string) (sink.Sink, error) {
			return sink.Open(path, cfg.MQTT, id)
		}),
	)

	// First signal stops the device cleanly, a second one interrupts
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", "signal", sig)
		sess.Stop()
		select {
		case sig = <-sigChan:
			logger.Info("Received second signal, interrupting", "signal", sig)
			cancel()
		case <-sess.Finished():
		}
	}()

	// Create Slack notifier
	slackNotifier := notify.NewSlackNotifier(&cfg.Slack, cfg.App.InstanceID, logger)

	// Start monitoring server
	var monitorServer *monitoring.Server
	if cfg.Monitoring.Enabled {
		monitorServer = monitoring.NewServer(cfg, version, func() *session.Session { return sess }, logger)
		if err := monitorServer.Start(); err != nil {
			logger.Error("Failed to start monitoring server", "error", err)
		}
	}

	if err := sess.Start(ctx); err != nil {
		logger.Error("Failed to start session", "error", err)
		if nerr := slackNotifier.NotifyAbort(cfg.Device.Path, 0, err); nerr != nil {
			logger.Warn("Failed to send abort notification", "error", nerr)
		}
		stopMonitoring(monitorServer, logger)
		return 1
	}

	// Send startup notification
	if err := slackNotifier.NotifyStartup(sess.ID(), cfg.Device.Path, cfg.Output.Path); err != nil {
		logger.Warn("Failed to send startup notification", "error", err)
	}

	var viewer *plot.Launcher
	if showPlot {
		viewer = startViewer(cfg, logger)
	}

	startTime := time.Now()
	outcome := sess.Wait()
	duration := time.Since(startTime)
	count := sess.Count()

	switch outcome {
	case session.OutcomeStopped:
		if err := slackNotifier.NotifyShutdown(count, duration); err != nil {
			logger.Warn("Failed to send shutdown notification", "error", err)
		}
	case session.OutcomeAborted:
		if err := slackNotifier.NotifyAbort(cfg.Device.Path, count, sess.Err()); err != nil {
			logger.Warn("Failed to send abort notification", "error", err)
		}
	}

	if cfg.Plot.PNGPath != "" {
		renderSnapshot(cfg, logger)
	}

	if viewer != nil {
		if err := viewer.Close(); err != nil {
			logger.Debug("Failed to clean up plotter", "error", err)
		}
	}
	stopMonitoring(monitorServer, logger)

	logger.Info("CHY506R stopped",
		"outcome", outcome,
		"duration", duration,
		"samples", count,
	)

	if outcome == session.OutcomeAborted {
		return 1
	}
	return 0
}

func startViewer(cfg *config.Config, logger *slog.Logger) *plot.Launcher {
	if cfg.Output.Path == sink.Stdout {
		logger.Warn("Live plot needs an output file, not stdout")
		return nil
	}

	viewer, err := plot.NewLauncher(cfg.Output.Path, cfg.Plot)
	if err != nil {
		logger.Warn("Failed to prepare plotter", "error", err)
		return nil
	}
	if err := viewer.Start(); err != nil {
		logger.Warn("Failed to start plotter", "error", err)
		viewer.Close()
		return nil
	}
	logger.Info("Plotter started", "script", viewer.ScriptFile())
	return viewer
}

func renderSnapshot(cfg *config.Config, logger *slog.Logger) {
	if cfg.Output.Path == sink.Stdout {
		logger.Warn("PNG snapshot needs an output file, not stdout")
		return
	}

	err := plot.RenderFile(cfg.Output.Path, cfg.Plot.PNGPath, cfg.Plot)
	switch {
	case errors.Is(err, plot.ErrNotEnoughSamples):
		logger.Warn("Not enough samples for a PNG snapshot")
	case err != nil:
		logger.Error("Failed to render PNG snapshot", "error", err)
	default:
		logger.Info("PNG snapshot written", "path", cfg.Plot.PNGPath)
	}
}

func stopMonitoring(server *monitoring.Server, logger *slog.Logger) {
	if server == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("Error stopping monitoring server", "error", err)
	}
}

func setupLogging(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler

	// If base path is set, use file logging with rotation
	if cfg.Logging.BasePath != "" {
		logPath := filepath.Join(cfg.Logging.BasePath, cfg.Logging.Filename)
		writer := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		}
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		// Console logging stays off stdout, which may carry the table
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
