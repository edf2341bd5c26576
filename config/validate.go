package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError contains details about configuration validation failures
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors
func Validate(cfg *Config) error {
	var errors ValidationErrors

	// Validate device
	if cfg.Device.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "device.path",
			Message: "device path is required",
		})
	}
	if cfg.Device.ReadTimeoutSec < 1 {
		errors = append(errors, ValidationError{
			Field:   "device.read_timeout_sec",
			Message: "must be at least 1 second",
		})
	}

	// Validate output
	if cfg.Output.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "output.path",
			Message: "output path is required (use \"-\" for stdout)",
		})
	} else if cfg.Output.Path == cfg.Device.Path {
		errors = append(errors, ValidationError{
			Field:   "output.path",
			Message: "output must differ from the device path",
		})
	}

	// Validate MQTT
	if cfg.MQTT.Enabled() {
		if !strings.Contains(cfg.MQTT.Server, "://") {
			errors = append(errors, ValidationError{
				Field:   "mqtt.server",
				Message: fmt.Sprintf("broker URL needs a scheme: %s", cfg.MQTT.Server),
			})
		}
		if cfg.MQTT.QoS > 2 {
			errors = append(errors, ValidationError{
				Field:   "mqtt.qos",
				Message: "must be 0, 1 or 2",
			})
		}
	}

	// Validate logging
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level: %s", cfg.Logging.Level),
		})
	}
	if cfg.Logging.BasePath != "" {
		if info, err := os.Stat(cfg.Logging.BasePath); err != nil || !info.IsDir() {
			errors = append(errors, ValidationError{
				Field:   "logging.base_path",
				Message: fmt.Sprintf("directory does not exist: %s", cfg.Logging.BasePath),
			})
		}
	}

	// Validate monitoring
	if cfg.Monitoring.Enabled && (cfg.Monitoring.Port < 1 || cfg.Monitoring.Port > 65535) {
		errors = append(errors, ValidationError{
			Field:   "monitoring.port",
			Message: "must be between 1 and 65535",
		})
	}

	// Validate plot
	if cfg.Plot.YMax <= cfg.Plot.YMin {
		errors = append(errors, ValidationError{
			Field:   "plot.y_max",
			Message: "must be greater than plot.y_min",
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}
