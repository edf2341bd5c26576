package sink

import (
	"chy506r/config"
)

// Open opens the table at path and, when a broker is configured, an MQTT
// publisher mirroring it. Publish failures surface as *MirrorError.
func Open(path string, mqttCfg config.MQTTConfig, sessionID string) (Sink, error) {
	table, err := OpenCSV(path)
	if err != nil {
		return nil, err
	}
	if !mqttCfg.Enabled() {
		return table, nil
	}

	publisher, err := NewMQTT(mqttCfg, sessionID)
	if err != nil {
		table.Close()
		return nil, err
	}
	return Multi{table, publisher}, nil
}
