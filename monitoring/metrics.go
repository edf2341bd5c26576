package monitoring

import (
	"fmt"
	"net/http"
)

// MetricsHandler creates an HTTP handler for Prometheus metrics
type MetricsHandler struct {
	source Source
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(source Source) *MetricsHandler {
	return &MetricsHandler{
		source: source,
	}
}

// ServeHTTP handles the /metrics endpoint in Prometheus format
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	s := h.source()
	if s == nil {
		fmt.Fprintln(w, "# HELP chy506r_session_running Session status (1=running, 0=not running)")
		fmt.Fprintln(w, "# TYPE chy506r_session_running gauge")
		fmt.Fprintln(w, "chy506r_session_running 0")
		return
	}
	stats := s.Stats()

	// Samples total
	fmt.Fprintln(w, "# HELP chy506r_samples_total Total averaged samples written")
	fmt.Fprintln(w, "# TYPE chy506r_samples_total counter")
	fmt.Fprintf(w, "chy506r_samples_total{device=%q} %d\n", stats.Device, stats.Samples)

	// Lines total
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP chy506r_lines_total Total lines read from the device")
	fmt.Fprintln(w, "# TYPE chy506r_lines_total counter")
	fmt.Fprintf(w, "chy506r_lines_total{device=%q} %d\n", stats.Device, stats.LinesRead)

	// Bytes total
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP chy506r_bytes_read_total Total bytes read from the device")
	fmt.Fprintln(w, "# TYPE chy506r_bytes_read_total counter")
	fmt.Fprintf(w, "chy506r_bytes_read_total{device=%q} %d\n", stats.Device, stats.BytesRead)

	// Discarded frames
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP chy506r_frame_errors_total Frames discarded by kind")
	fmt.Fprintln(w, "# TYPE chy506r_frame_errors_total counter")
	fmt.Fprintf(w, "chy506r_frame_errors_total{device=%q,kind=\"length\"} %d\n", stats.Device, stats.ProtocolErrors)
	fmt.Fprintf(w, "chy506r_frame_errors_total{device=%q,kind=\"field\"} %d\n", stats.Device, stats.FieldErrors)

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP chy506r_mirror_errors_total Samples written to the table but not to a mirror")
	fmt.Fprintln(w, "# TYPE chy506r_mirror_errors_total counter")
	fmt.Fprintf(w, "chy506r_mirror_errors_total{device=%q} %d\n", stats.Device, stats.MirrorErrors)

	// Session status
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP chy506r_session_running Session status (1=running, 0=not running)")
	fmt.Fprintln(w, "# TYPE chy506r_session_running gauge")
	fmt.Fprintf(w, "chy506r_session_running{device=%q} %d\n", stats.Device, boolToInt(stats.Running))

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP chy506r_session_done Session stopped on request (1) rather than aborted")
	fmt.Fprintln(w, "# TYPE chy506r_session_done gauge")
	fmt.Fprintf(w, "chy506r_session_done{device=%q} %d\n", stats.Device, boolToInt(stats.Done))

	// Last sample
	if !stats.LastSampleTime.IsZero() {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "# HELP chy506r_temperature_celsius Last averaged temperature per channel")
		fmt.Fprintln(w, "# TYPE chy506r_temperature_celsius gauge")
		fmt.Fprintf(w, "chy506r_temperature_celsius{device=%q,channel=\"1\"} %g\n", stats.Device, stats.LastSample.Channel1)
		fmt.Fprintf(w, "chy506r_temperature_celsius{device=%q,channel=\"2\"} %g\n", stats.Device, stats.LastSample.Channel2)

		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "# HELP chy506r_last_sample_timestamp Unix timestamp of last sample written")
		fmt.Fprintln(w, "# TYPE chy506r_last_sample_timestamp gauge")
		fmt.Fprintf(w, "chy506r_last_sample_timestamp{device=%q} %d\n", stats.Device, stats.LastSampleTime.Unix())
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
