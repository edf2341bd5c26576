package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"chy506r/session"
)

// Source returns the session being monitored, or nil before the first start
type Source func() *session.Session

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string         `json:"status"`
	InstanceID string         `json:"instance_id"`
	Version    string         `json:"version"`
	UptimeSec  int64          `json:"uptime_sec"`
	Session    *session.Stats `json:"session,omitempty"`
}

// HealthHandler creates an HTTP handler for health checks
type HealthHandler struct {
	instanceID string
	version    string
	startTime  time.Time
	source     Source
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(instanceID, version string, source Source) *HealthHandler {
	return &HealthHandler{
		instanceID: instanceID,
		version:    version,
		startTime:  time.Now(),
		source:     source,
	}
}

// ServeHTTP handles the /health endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:     "idle",
		InstanceID: h.instanceID,
		Version:    h.version,
		UptimeSec:  int64(time.Since(h.startTime).Seconds()),
	}

	// An aborted run usually means the thermometer is unplugged or switched off
	if s := h.source(); s != nil {
		stats := s.Stats()
		response.Session = &stats
		switch stats.State {
		case session.OutcomeRunning:
			response.Status = "healthy"
		case session.OutcomeAborted:
			response.Status = "degraded"
		default:
			response.Status = string(stats.State)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status == "degraded" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}
