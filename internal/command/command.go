// Package command is the boundary to the device command/actuation subsystem.
// The engine only enqueues commands; execution, retries, and device routing
// happen downstream.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lifebox-go/internal/queue"
)

// Request describes one command to enqueue for a device.
type Request struct {
	DeviceID    string         `json:"device_id"`
	CommandType string         `json:"command_type"`
	Reason      string         `json:"reason,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	RequestedBy string         `json:"requested_by"`
}

// Enqueuer hands a command to the actuation subsystem and returns its ID.
type Enqueuer interface {
	Enqueue(ctx context.Context, req Request) (string, error)
}

// envelope is the wire format published to the command topic.
type envelope struct {
	CommandID  string    `json:"command_id"`
	Request    Request   `json:"request"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// QueueEnqueuer publishes command envelopes to a message queue, keyed by
// device so commands for one device stay ordered.
type QueueEnqueuer struct {
	producer queue.Producer
	logger   *slog.Logger
}

// NewQueueEnqueuer creates a queue-backed command enqueuer.
func NewQueueEnqueuer(producer queue.Producer, logger *slog.Logger) *QueueEnqueuer {
	return &QueueEnqueuer{producer: producer, logger: logger}
}

// Enqueue publishes the command and returns the generated command ID.
func (e *QueueEnqueuer) Enqueue(ctx context.Context, req Request) (string, error) {
	env := envelope{
		CommandID:  uuid.New().String(),
		Request:    req,
		EnqueuedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to serialize command: %w", err)
	}

	msg := &queue.Message{
		Key:   []byte(req.DeviceID),
		Value: payload,
		Headers: map[string]string{
			"command_type": req.CommandType,
			"requested_by": req.RequestedBy,
		},
	}

	if err := e.producer.Publish(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to publish command: %w", err)
	}

	e.logger.Debug("command enqueued",
		"commandID", env.CommandID,
		"deviceID", req.DeviceID,
		"commandType", req.CommandType,
	)

	return env.CommandID, nil
}

// LogEnqueuer is a no-op enqueuer that logs commands. Used in tests.
type LogEnqueuer struct {
	logger *slog.Logger
}

// NewLogEnqueuer creates a log-backed command enqueuer.
func NewLogEnqueuer(logger *slog.Logger) *LogEnqueuer {
	return &LogEnqueuer{logger: logger}
}

// Enqueue logs the command and returns a generated ID.
func (e *LogEnqueuer) Enqueue(ctx context.Context, req Request) (string, error) {
	id := uuid.New().String()
	e.logger.Info("STUB: would enqueue device command",
		"commandID", id,
		"deviceID", req.DeviceID,
		"commandType", req.CommandType,
		"reason", req.Reason,
	)
	return id, nil
}
