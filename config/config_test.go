package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"device": {"path": "/dev/ttyUSB0"}, "output": {"path": "out.csv"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Device.Path)
	assert.Equal(t, 4, cfg.Device.ReadTimeoutSec)
	assert.Equal(t, 4*time.Second, cfg.Device.GetReadTimeout())
	assert.Equal(t, "CHY506R", cfg.App.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "chy506r/samples", cfg.MQTT.Topic)
	assert.False(t, cfg.MQTT.Enabled())
	assert.Equal(t, 5*time.Second, cfg.MQTT.GetTimeout())
	assert.Equal(t, "gnuplot", cfg.Plot.Gnuplot)
	assert.Equal(t, 300.0, cfg.Plot.YMax)
	assert.NoError(t, Validate(cfg))
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"device": {"path": "/dev/ttyS1", "read_timeout_sec": 9},
		"output": {"path": "-"},
		"mqtt": {"server": "tcp://broker:1883", "topic": "lab/t", "qos": 1},
		"plot": {"y_min": -50, "y_max": 50}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9*time.Second, cfg.Device.GetReadTimeout())
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, "lab/t", cfg.MQTT.Topic)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, -50.0, cfg.Plot.YMin)
	assert.NoError(t, Validate(cfg))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"device": `))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"missing device", func(c *Config) { c.Device.Path = "" }, []string{"device.path"}},
		{"missing output", func(c *Config) { c.Output.Path = "" }, []string{"output.path"}},
		{"output is device", func(c *Config) { c.Output.Path = c.Device.Path }, []string{"output.path"}},
		{"negative timeout", func(c *Config) { c.Device.ReadTimeoutSec = -1 }, []string{"device.read_timeout_sec"}},
		{"mqtt without scheme", func(c *Config) { c.MQTT.Server = "broker:1883" }, []string{"mqtt.server"}},
		{"bad qos", func(c *Config) { c.MQTT.Server = "tcp://b:1883"; c.MQTT.QoS = 3 }, []string{"mqtt.qos"}},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, []string{"logging.level"}},
		{"bad monitoring port", func(c *Config) { c.Monitoring.Enabled = true; c.Monitoring.Port = 70000 }, []string{"monitoring.port"}},
		{"inverted y range", func(c *Config) { c.Plot.YMin = 10; c.Plot.YMax = 5 }, []string{"plot.y_max"}},
		{"several", func(c *Config) { c.Device.Path = ""; c.Output.Path = "" }, []string{"device.path", "output.path"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Device.Path = "/dev/ttyUSB0"
			cfg.Output.Path = "out.csv"
			tt.mutate(cfg)

			err := Validate(cfg)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %v", err)

			var fields []string
			for _, v := range verrs {
				fields = append(fields, v.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}
