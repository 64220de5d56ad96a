// Package mqtt delivers probe records to an MQTT broker.
//
// It lives apart from the telemetry package so the firmware, which runs
// the same loop code, never links the network client.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/Grinkers/ednprobe/pkg/telemetry"
)

const (
	// qosAtLeastOnce resends a record until the broker acknowledges it.
	qosAtLeastOnce byte = 1
	publishTimeout      = 5 * time.Second
	// disconnectQuiesce is how long Close lets in-flight messages drain,
	// in milliseconds as the client counts it.
	disconnectQuiesce uint = 250
)

// publisher is the slice of the paho client the sink uses.
type publisher interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Sink publishes each record to a single topic.
type Sink struct {
	client publisher
	topic  string
}

var _ telemetry.Sink = (*Sink)(nil)

// NewSink creates a sink for the configured broker. Call Connect before
// publishing.
func NewSink(cfg config.MQTTConfig) *Sink {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(publishTimeout)

	return &Sink{
		client: paho.NewClient(opts),
		topic:  cfg.Topic,
	}
}

// Connect establishes the broker session.
func (s *Sink) Connect() error {
	token := s.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	return nil
}

// Publish sends one record to the sink's topic.
func (s *Sink) Publish(record []byte) error {
	// The client may retry delivery after this call returns, while the
	// caller reuses the record buffer.
	payload := make([]byte, len(record))
	copy(payload, record)

	token := s.client.Publish(s.topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timed out after %v", publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

// Close drains in-flight messages and disconnects.
func (s *Sink) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}
