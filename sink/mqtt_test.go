package sink

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chy506r/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// startBroker runs an in-process broker and forwards payloads published on topic
func startBroker(t *testing.T, topic string) (string, <-chan []byte) {
	t.Helper()
	address := fmt.Sprintf("127.0.0.1:%d", freePort(t))

	broker := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Type:    "tcp",
		Address: address,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { broker.Close() })

	received := make(chan []byte, 16)
	require.NoError(t, broker.Subscribe(topic, 1, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		received <- append([]byte(nil), pk.Payload...)
	}))

	return "tcp://" + address, received
}

func TestMQTTPublishesSamples(t *testing.T) {
	server, received := startBroker(t, "lab/chy506r")

	m, err := NewMQTT(config.MQTTConfig{
		Server:     server,
		ClientID:   "chy506r-test",
		Topic:      "lab/chy506r",
		QoS:        1,
		TimeoutSec: 5,
	}, "session-1")
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.WriteHeader())
	require.NoError(t, m.WriteSample(sample(7, 9, 0, 0.002, 2)))

	select {
	case payload := <-received:
		var got MQTTPayload
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, MQTTPayload{Session: "session-1", Time: "07:09:00", T1: 0.002, T2: 2}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestMQTTConnectFailure(t *testing.T) {
	_, err := NewMQTT(config.MQTTConfig{
		Server:     fmt.Sprintf("tcp://127.0.0.1:%d", freePort(t)),
		ClientID:   "chy506r-test",
		Topic:      "lab/chy506r",
		TimeoutSec: 1,
	}, "session-1")
	assert.Error(t, err)
}
