package monitoring

import (
	"encoding/json"
	"io"
	"net/http"

	"chy506r/config"
)

const redacted = "********"

// ConfigHandler serves the effective configuration and checks candidate ones
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		cfg: cfg,
	}
}

// ServeHTTP handles config requests
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		h.getConfig(w, r)
	case http.MethodPost:
		h.validateConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConfigHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := *h.cfg
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = redacted
	}
	if cfg.Slack.WebhookURL != "" {
		cfg.Slack.WebhookURL = redacted
	}

	json.NewEncoder(w).Encode(&cfg)
}

// validateConfig checks a posted configuration without applying it
func (h *ConfigHandler) validateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := config.Default()
	if err := json.Unmarshal(body, cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := config.Validate(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":  "valid",
		"message": "Configuration is valid. Restart with it to apply changes.",
	})
}
