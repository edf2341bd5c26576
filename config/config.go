package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config is the root configuration structure
type Config struct {
	App        AppConfig        `json:"app"`
	Device     DeviceConfig     `json:"device"`
	Output     OutputConfig     `json:"output"`
	MQTT       MQTTConfig       `json:"mqtt"`
	Logging    LoggingConfig    `json:"logging"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Slack      SlackConfig      `json:"slack"`
	Plot       PlotConfig       `json:"plot"`
}

// AppConfig contains application metadata
type AppConfig struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
}

// DeviceConfig describes the thermometer's serial port.
// Line framing is fixed by the device and not configurable.
type DeviceConfig struct {
	Path           string `json:"path"`
	ReadTimeoutSec int    `json:"read_timeout_sec"`
}

// OutputConfig selects where the sample table is written ("-" for stdout)
type OutputConfig struct {
	Path string `json:"path"`
}

// MQTTConfig enables publishing samples to a broker when Server is set
type MQTTConfig struct {
	Server     string `json:"server"`
	ClientID   string `json:"client_id"`
	Topic      string `json:"topic"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	QoS        byte   `json:"qos"`
	Retain     bool   `json:"retain"`
	TimeoutSec int    `json:"timeout_sec"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level      string `json:"level"`
	BasePath   string `json:"base_path"`
	Filename   string `json:"filename"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
}

// MonitoringConfig defines HTTP monitoring settings
type MonitoringConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// SlackConfig defines Slack notification settings
type SlackConfig struct {
	WebhookURL     string `json:"webhook_url"`
	NotifyStartup  bool   `json:"notify_startup"`
	NotifyShutdown bool   `json:"notify_shutdown"`
	NotifyErrors   bool   `json:"notify_errors"`
}

// PlotConfig controls the gnuplot viewer and PNG snapshots
type PlotConfig struct {
	Gnuplot string  `json:"gnuplot"`
	Title   string  `json:"title"`
	YMin    float64 `json:"y_min"`
	YMax    float64 `json:"y_max"`
	PNGPath string  `json:"png_path,omitempty"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func (c *Config) applyDefaults() {
	// App defaults
	if c.App.Name == "" {
		c.App.Name = "CHY506R"
	}
	if c.App.InstanceID == "" {
		hostname, _ := os.Hostname()
		c.App.InstanceID = hostname
	}

	// Device defaults
	if c.Device.ReadTimeoutSec == 0 {
		c.Device.ReadTimeoutSec = 4
	}

	// MQTT defaults
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "chy506r-" + c.App.InstanceID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "chy506r/samples"
	}
	if c.MQTT.TimeoutSec == 0 {
		c.MQTT.TimeoutSec = 5
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Filename == "" {
		c.Logging.Filename = "chy506r.log"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}

	// Monitoring defaults
	if c.Monitoring.Port == 0 {
		c.Monitoring.Port = 8080
	}

	// Plot defaults
	if c.Plot.Gnuplot == "" {
		c.Plot.Gnuplot = "gnuplot"
	}
	if c.Plot.Title == "" {
		c.Plot.Title = "Temperatures"
	}
	if c.Plot.YMin == 0 && c.Plot.YMax == 0 {
		c.Plot.YMax = 300
	}
}

// GetReadTimeout returns the serial read timeout as a duration
func (c *DeviceConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

// Enabled reports whether samples should be published to a broker
func (c *MQTTConfig) Enabled() bool {
	return c.Server != ""
}

// GetTimeout returns the connect and publish timeout as a duration
func (c *MQTTConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}
