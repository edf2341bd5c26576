package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chy506r/config"
)

const footer = "CHY506R"

// SlackNotifier sends notifications to Slack
type SlackNotifier struct {
	config     *config.SlackConfig
	instanceID string
	logger     *slog.Logger
	client     *http.Client
}

// SlackMessage represents a Slack webhook message
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(cfg *config.SlackConfig, instanceID string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		config:     cfg,
		instanceID: instanceID,
		logger:     logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsEnabled returns true if Slack notifications are configured
func (s *SlackNotifier) IsEnabled() bool {
	return s.config.WebhookURL != ""
}

// NotifyStartup announces a new measurement session
func (s *SlackNotifier) NotifyStartup(sessionID, device, output string) error {
	if !s.IsEnabled() || !s.config.NotifyStartup {
		return nil
	}

	msg := SlackMessage{
		Attachments: []SlackAttachment{
			{
				Color: "good",
				Title: "Measurements Started",
				Fields: []SlackField{
					{Title: "Instance", Value: s.instanceID, Short: true},
					{Title: "Device", Value: device, Short: true},
					{Title: "Output", Value: output, Short: true},
					{Title: "Session", Value: sessionID, Short: true},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return s.send(msg)
}

// NotifyShutdown reports a session that was stopped on request
func (s *SlackNotifier) NotifyShutdown(samples int64, uptime time.Duration) error {
	if !s.IsEnabled() || !s.config.NotifyShutdown {
		return nil
	}

	msg := SlackMessage{
		Attachments: []SlackAttachment{
			{
				Color: "warning",
				Title: "Measurements Stopped",
				Fields: []SlackField{
					{Title: "Instance", Value: s.instanceID, Short: true},
					{Title: "Duration", Value: formatDuration(uptime), Short: true},
					{Title: "Samples", Value: fmt.Sprintf("%d", samples), Short: true},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return s.send(msg)
}

// NotifyAbort reports a session that ended without a stop request.
// A nil err means the device went silent.
func (s *SlackNotifier) NotifyAbort(device string, samples int64, err error) error {
	if !s.IsEnabled() || !s.config.NotifyErrors {
		return nil
	}

	reason := "Measurements aborted. Is the device connected to PC?"
	if err != nil {
		reason = err.Error()
	}

	msg := SlackMessage{
		Attachments: []SlackAttachment{
			{
				Color: "danger",
				Title: "Measurements Aborted",
				Fields: []SlackField{
					{Title: "Instance", Value: s.instanceID, Short: true},
					{Title: "Device", Value: device, Short: true},
					{Title: "Samples", Value: fmt.Sprintf("%d", samples), Short: true},
					{Title: "Reason", Value: reason, Short: false},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return s.send(msg)
}

func (s *SlackNotifier) send(msg SlackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequest("POST", s.config.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack returned non-OK status: %d", resp.StatusCode)
	}

	s.logger.Debug("Slack notification sent")
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
