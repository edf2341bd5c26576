package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chy506r/frame"
	"chy506r/serial"
	"chy506r/session"
	"chy506r/simulator"
)

func main() {
	mode := flag.String("mode", "receive", "Mode: receive, loopback, or simulate")
	device := flag.String("device", "/dev/ttyUSB0", "Serial device")
	timeout := flag.Duration("timeout", 4*time.Second, "Read timeout")
	message := flag.String("message", "TEST", "Message to send in loopback mode")
	rate := flag.Float64("rate", 4, "Frames per second in simulate mode")
	jitter := flag.Float64("jitter", 10, "Jitter percent in simulate mode")
	flag.Parse()

	cfg := serial.ThermometerConfig(*device, *timeout)

	switch *mode {
	case "receive":
		receiveTest(cfg)
	case "loopback":
		loopbackTest(cfg, *message)
	case "simulate":
		simulate(cfg, *rate, *jitter)
	default:
		log.Fatal("Invalid mode. Use: receive, loopback, or simulate")
	}
}

// receiveTest starts the device and prints every decoded frame
func receiveTest(cfg serial.PortConfig) {
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open port: %v", err)
	}
	defer port.Close()

	fmt.Printf("Listening on %s at %d baud 7E1\n", cfg.Device, cfg.BaudRate)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if _, err := port.Write([]byte(session.StartCommand)); err != nil {
		log.Fatalf("Failed to send start command: %v", err)
	}
	defer port.Write([]byte(session.StopCommand))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lines := serial.NewLineReader(port)
	for {
		select {
		case <-sigCh:
			return
		default:
		}

		line, err := lines.ReadLine()
		if errors.Is(err, serial.ErrReadTimeout) {
			fmt.Printf("[%s] No data within %v\n", time.Now().Format("15:04:05.000"), cfg.ReadTimeout)
			continue
		}
		if err != nil {
			log.Printf("Read error: %v", err)
			return
		}

		reading, err := frame.Decode(line)
		if err != nil {
			fmt.Printf("[%s] ✗ %v\n", time.Now().Format("15:04:05.000"), err)
			continue
		}
		fmt.Printf("[%s] ✓ %s T1=%g T2=%g status=%q\n",
			time.Now().Format("15:04:05.000"), reading.Time, reading.Channel1, reading.Channel2, reading.Status)
	}
}

func loopbackTest(cfg serial.PortConfig, message string) {
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open port: %v", err)
	}
	defer port.Close()

	fmt.Printf("Loopback test on %s at %d baud\n", cfg.Device, cfg.BaudRate)
	fmt.Println("Connect pins 2 and 3 (TX and RX) with a jumper")
	fmt.Println()

	lines := serial.NewLineReader(port)
	for i := 0; i < 5; i++ {
		testMsg := fmt.Sprintf("%s-%d", message, i+1)
		fmt.Printf("Sending: %s\n", testMsg)

		if _, err := port.Write([]byte(testMsg + "\n")); err != nil {
			log.Printf("Write error: %v", err)
			continue
		}

		received, err := lines.ReadLine()
		switch {
		case errors.Is(err, serial.ErrReadTimeout):
			fmt.Printf("  ✗ No data received (timeout)\n")
		case err != nil:
			fmt.Printf("  ✗ No data received (error: %v)\n", err)
		case frame.Trim(received) == testMsg:
			fmt.Printf("  ✓ Loopback OK: %s\n", testMsg)
		default:
			fmt.Printf("  ? Received different: %q\n", received)
		}

		time.Sleep(1 * time.Second)
	}
}

// simulate plays the thermometer on cfg.Device, e.g. one end of a null-modem pair
func simulate(cfg serial.PortConfig, rate, jitter float64) {
	// Short timeout so command polling stays responsive
	cfg.ReadTimeout = 100 * time.Millisecond
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open port: %v", err)
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	simCfg := simulator.DefaultConfig()
	simCfg.FramesPerSecond = rate
	simCfg.JitterPercent = jitter

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	sim := simulator.New(port, simCfg, logger)

	fmt.Printf("Simulating CHY 506R on %s at %.1f frames/s\n", cfg.Device, rate)
	fmt.Println("Waiting for start command, press Ctrl+C to stop")

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulator failed: %v", err)
	}
	fmt.Printf("\nSimulator exited after %d frames\n", sim.Frames())
}
