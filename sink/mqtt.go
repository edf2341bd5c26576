package sink

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"chy506r/aggregate"
	"chy506r/config"
)

// MQTTPayload is the JSON document published for each sample
type MQTTPayload struct {
	Session string  `json:"session"`
	Time    string  `json:"time"`
	T1      float64 `json:"t1"`
	T2      float64 `json:"t2"`
}

// MQTT publishes each sample to a broker topic
type MQTT struct {
	client  mqtt.Client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
	session string
}

// NewMQTT connects to the broker described by cfg
func NewMQTT(cfg config.MQTTConfig, session string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	timeout := cfg.GetTimeout()
	opts.SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", cfg.Server)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return &MQTT{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: timeout,
		session: session,
	}, nil
}

// WriteHeader is a no-op; each payload is self-describing
func (m *MQTT) WriteHeader() error {
	return nil
}

// WriteSample publishes the sample and waits for the broker to accept it
func (m *MQTT) WriteSample(s aggregate.Sample) error {
	b, err := json.Marshal(MQTTPayload{
		Session: m.session,
		Time:    s.Time.String(),
		T1:      s.Channel1,
		T2:      s.Channel2,
	})
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic, m.qos, m.retain, b)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("mqtt publish to %s: timed out", m.topic)
	}
	return token.Error()
}

// Close disconnects from the broker
func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
