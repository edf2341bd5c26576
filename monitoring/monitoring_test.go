package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chy506r/config"
	"chy506r/serial"
	"chy506r/session"
)

// finishedSession runs a session over the given lines until input ends
func finishedSession(t *testing.T, lines ...string) *session.Session {
	t.Helper()
	port := serial.NewMockPort("/dev/ttyUSB0", 20*time.Millisecond)
	s := session.New(
		session.Config{
			Device:      "/dev/ttyUSB0",
			Output:      filepath.Join(t.TempDir(), "samples.csv"),
			ReadTimeout: 20 * time.Millisecond,
		},
		session.WithPortOpener(func(serial.PortConfig) (serial.Port, error) { return port, nil }),
	)
	port.Feed(lines...)
	port.EndInput()
	require.NoError(t, s.Start(context.Background()))
	s.Wait()
	return s
}

var threeSeconds = []string{
	"+0055F0 +005654 101500ST000000",
	"+005654 +0056B8 101501ST000000",
	"+0056B8 +00571C 101502ST000000",
	"+00571C +005780 101503ST000000",
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func noSession() *session.Session { return nil }

func TestHealthIdle(t *testing.T) {
	rec := get(t, NewHealthHandler("bench-1", "1.0.0", noSession), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp.Status)
	assert.Equal(t, "bench-1", resp.InstanceID)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.Nil(t, resp.Session)
}

func TestHealthDegradedAfterAbort(t *testing.T) {
	s := finishedSession(t, threeSeconds...)
	rec := get(t, NewHealthHandler("bench-1", "1.0.0", func() *session.Session { return s }), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	require.NotNil(t, resp.Session)
	assert.Equal(t, int64(3), resp.Session.Samples)
	assert.Equal(t, session.OutcomeAborted, resp.Session.State)
}

func TestMetrics(t *testing.T) {
	s := finishedSession(t, append([]string{"garbage"}, threeSeconds...)...)
	rec := get(t, NewMetricsHandler(func() *session.Session { return s }), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `chy506r_samples_total{device="/dev/ttyUSB0"} 3`)
	assert.Contains(t, body, `chy506r_lines_total{device="/dev/ttyUSB0"} 5`)
	assert.Contains(t, body, `chy506r_frame_errors_total{device="/dev/ttyUSB0",kind="length"} 1`)
	assert.Contains(t, body, `chy506r_mirror_errors_total{device="/dev/ttyUSB0"} 0`)
	assert.Contains(t, body, `chy506r_session_running{device="/dev/ttyUSB0"} 0`)
	assert.Contains(t, body, `chy506r_temperature_celsius{device="/dev/ttyUSB0",channel="1"} 22.2`)
}

func TestMetricsWithoutSession(t *testing.T) {
	rec := get(t, NewMetricsHandler(noSession), "/metrics")
	assert.Contains(t, rec.Body.String(), "chy506r_session_running 0")
	assert.NotContains(t, rec.Body.String(), "chy506r_samples_total")
}

func TestSamplesTail(t *testing.T) {
	s := finishedSession(t, threeSeconds...)
	h := NewSamplesHandler(func() *session.Session { return s })

	rec := get(t, h, "/api/samples?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SamplesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Samples, 2)
	assert.Equal(t, "10:15:01", resp.Samples[0].Time)
	assert.Equal(t, 22.1, resp.Samples[0].T1)
	assert.Equal(t, "10:15:02", resp.Samples[1].Time)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/samples?limit=0").Code)
	assert.Equal(t, http.StatusNotFound, get(t, NewSamplesHandler(noSession), "/api/samples").Code)
}

func TestParseUARTs(t *testing.T) {
	proc := strings.Join([]string{
		"serinfo:1.0 driver revision:",
		"0: uart:16550A port:000003F8 irq:4 tx:12 rx:3400 RTS|CTS|DTR|DSR",
		"1: uart:unknown port:000002F8 irq:3",
		"2: uart:16550A port:000003E8 irq:4 tx:0 rx:0",
	}, "\n")

	ports := parseUARTs(strings.NewReader(proc))
	require.Len(t, ports, 2)

	s0 := ports["/dev/ttyS0"]
	assert.Equal(t, "16550A", s0.UART)
	assert.Equal(t, "0x000003F8", s0.Port)
	assert.Equal(t, int64(3400), s0.RX)
	assert.True(t, s0.Active)
	assert.False(t, ports["/dev/ttyS2"].Active)
}

func TestSysPortsMergesEnumeration(t *testing.T) {
	h := &SysPortsHandler{
		source:    noSession,
		listPorts: func() ([]string, error) { return []string{"/dev/ttyUSB0", "/dev/ttyS0"}, nil },
		procPath:  filepath.Join(t.TempDir(), "missing"),
	}

	rec := get(t, h, "/api/ports")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Ports []SysPortInfo `json:"ports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Ports, 2)
	assert.Equal(t, "/dev/ttyUSB0", resp.Ports[0].Device)
	assert.False(t, resp.Ports[0].InUse)
}

func TestConfigRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Server = "tcp://broker:1883"
	cfg.MQTT.Password = "hunter2"
	cfg.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/X"

	rec := get(t, NewConfigHandler(cfg), "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), "hooks.slack.com")
	assert.Contains(t, rec.Body.String(), "tcp://broker:1883")
	assert.Equal(t, "hunter2", cfg.MQTT.Password)
}

func TestConfigValidate(t *testing.T) {
	h := NewConfigHandler(config.Default())

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(body)))
		return rec
	}

	ok := post(`{"device":{"path":"/dev/ttyUSB0"},"output":{"path":"out.csv"}}`)
	assert.Equal(t, http.StatusOK, ok.Code)

	bad := post(`{"output":{"path":"out.csv"}}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Contains(t, bad.Body.String(), "device.path")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/config", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlerRoutes(t *testing.T) {
	h := NewHandler(config.Default(), "dev", noSession)
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/samples").Code)
}

func TestClientReadsRemoteInstance(t *testing.T) {
	s := finishedSession(t, threeSeconds...)
	srv := httptest.NewServer(NewHandler(config.Default(), "2.0.0", func() *session.Session { return s }))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)
	assert.Equal(t, srv.URL, client.BaseURL())

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "2.0.0", health.Version)
	require.NotNil(t, health.Session)
	assert.Equal(t, int64(3), health.Session.Samples)

	samples, err := client.Samples(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, samples.Samples, 1)
	assert.Equal(t, "10:15:02", samples.Samples[0].Time)
	assert.Equal(t, s.Stats().Output, samples.Output)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(NewHandler(config.Default(), "2.0.0", noSession))
	defer srv.Close()
	client := NewClient(srv.URL, time.Second)

	_, err := client.Samples(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNoSamples)

	var statusErr *StatusError
	err = client.get(context.Background(), "/nowhere", &HealthResponse{}, http.StatusOK)
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	srv.Close()
	_, err = client.Health(context.Background())
	assert.Error(t, err)
}
