package main

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MqttLogWriter implementuje io.Writer. Vše, co se do něj zapíše, odletí
// na MQTT topic "logs/<service>", odkud si logy sbírá centrální collector.
type MqttLogWriter struct {
	client mqtt.Client
	topic  string
}

func NewMqttLogWriter(client mqtt.Client, serviceName string) *MqttLogWriter {
	return &MqttLogWriter{
		client: client,
		topic:  fmt.Sprintf("logs/%s", serviceName),
	}
}

// Write volá slog při každém log záznamu.
func (w *MqttLogWriter) Write(p []byte) (int, error) {
	// Payload kopírujeme; 'p' se po návratu může změnit.
	payload := make([]byte, len(p))
	copy(payload, p)

	// Fire-and-forget, na token nečekáme — logování nesmí brzdit pipeline.
	w.client.Publish(w.topic, 0, false, payload)
	return len(p), nil
}
