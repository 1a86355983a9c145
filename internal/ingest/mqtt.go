package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lifebox-go/internal/config"
	"lifebox-go/internal/domain"
	"lifebox-go/internal/engine"
	"lifebox-go/internal/metrics"
)

// MQTTSource subscribes to a telemetry topic on an MQTT broker and feeds
// each message into the engine. Devices publish to
// <topic-prefix>/<device-id>; a device_id in the payload wins over the one
// in the topic.
type MQTTSource struct {
	config *config.MQTTConfig
	engine *engine.Engine
	logger *slog.Logger
	client mqtt.Client
}

// NewMQTTSource creates an MQTT telemetry source.
func NewMQTTSource(cfg *config.MQTTConfig, eng *engine.Engine, logger *slog.Logger) *MQTTSource {
	return &MQTTSource{
		config: cfg,
		engine: eng,
		logger: logger,
	}
}

// Start connects to the broker and subscribes to the telemetry topic.
// Message handling runs on paho's callback goroutines; Start returns once
// the subscription is established.
func (s *MQTTSource) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.config.Broker).
		SetClientID(s.config.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(ctx, msg.Topic(), msg.Payload())
	}

	if token := s.client.Subscribe(s.config.Topic, 0, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to mqtt topic: %w", token.Error())
	}

	s.logger.Info("mqtt telemetry source started",
		"broker", s.config.Broker,
		"topic", s.config.Topic,
	)
	return nil
}

func (s *MQTTSource) handleMessage(ctx context.Context, topic string, payload []byte) {
	var point domain.TelemetryDataPoint
	if err := json.Unmarshal(payload, &point); err != nil {
		metrics.TelemetryPointsTotal.WithLabelValues("malformed").Inc()
		s.logger.Error("failed to deserialize mqtt telemetry", "error", err, "topic", topic)
		return
	}

	if point.DeviceID == "" {
		point.DeviceID = deviceIDFromTopic(topic)
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	if err := point.Validate(); err != nil {
		metrics.TelemetryPointsTotal.WithLabelValues("malformed").Inc()
		s.logger.Warn("dropping invalid mqtt telemetry", "error", err, "topic", topic)
		return
	}

	if _, err := s.engine.ProcessTelemetry(ctx, &point); err != nil {
		s.logger.Error("failed to process mqtt telemetry", "error", err, "deviceID", point.DeviceID)
	}
}

// Stop disconnects from the broker.
func (s *MQTTSource) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	s.logger.Info("mqtt telemetry source stopped")
}

// deviceIDFromTopic takes the last topic segment as the device ID.
func deviceIDFromTopic(topic string) string {
	segments := strings.Split(topic, "/")
	return segments[len(segments)-1]
}
