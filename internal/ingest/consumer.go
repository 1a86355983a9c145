// Package ingest feeds telemetry into the alarm engine from the message
// queue and, optionally, straight from an MQTT broker.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"lifebox-go/internal/domain"
	"lifebox-go/internal/engine"
	"lifebox-go/internal/metrics"
	"lifebox-go/internal/queue"
)

// Consumer pulls telemetry messages off the queue and runs them through the
// engine. One message is one TelemetryDataPoint.
type Consumer struct {
	consumer queue.Consumer
	engine   *engine.Engine
	logger   *slog.Logger
}

// NewConsumer creates a telemetry consumer.
func NewConsumer(consumer queue.Consumer, eng *engine.Engine, logger *slog.Logger) *Consumer {
	return &Consumer{
		consumer: consumer,
		engine:   eng,
		logger:   logger,
	}
}

// Start begins consuming telemetry from the queue.
// This is a blocking call that runs until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting telemetry consumer")
	return c.consumer.Start(ctx, c.handleMessage)
}

// handleMessage is the callback for processing each message from the queue.
func (c *Consumer) handleMessage(ctx context.Context, msg *queue.Message) error {
	var point domain.TelemetryDataPoint
	if err := json.Unmarshal(msg.Value, &point); err != nil {
		metrics.TelemetryPointsTotal.WithLabelValues("malformed").Inc()
		c.logger.Error("failed to deserialize telemetry", "error", err)
		// Return nil to avoid reprocessing malformed messages
		return nil
	}

	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	if err := point.Validate(); err != nil {
		metrics.TelemetryPointsTotal.WithLabelValues("malformed").Inc()
		c.logger.Warn("dropping invalid telemetry", "error", err, "deviceID", point.DeviceID)
		return nil
	}

	results, err := c.engine.ProcessTelemetry(ctx, &point)
	if err != nil {
		c.logger.Error("failed to process telemetry", "error", err, "deviceID", point.DeviceID)
		return err
	}

	if len(results) > 0 {
		c.logger.Debug("telemetry triggered alarms",
			"deviceID", point.DeviceID,
			"count", len(results),
		)
	}

	return nil
}

// Stop gracefully stops the telemetry consumer.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping telemetry consumer")
	return c.consumer.Close()
}
