package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"lifebox-go/internal/domain"
	"lifebox-go/internal/engine"
	"lifebox-go/internal/queue"
)

// AlarmHandler handles HTTP requests for the alarm engine operations:
// telemetry evaluation, rule test fires, and cache maintenance.
type AlarmHandler struct {
	engine    *engine.Engine
	telemetry queue.Producer
	logger    *slog.Logger
}

// NewAlarmHandler creates a new alarm handler. telemetry is the producer
// feeding the queue consumer; ingested points are published there instead of
// being evaluated inline.
func NewAlarmHandler(eng *engine.Engine, telemetry queue.Producer, logger *slog.Logger) *AlarmHandler {
	return &AlarmHandler{
		engine:    eng,
		telemetry: telemetry,
		logger:    logger,
	}
}

// ProcessTelemetry handles POST /v1/alarms/process-telemetry
// Evaluates one telemetry data point against every applicable rule and
// returns the alarms that triggered.
func (h *AlarmHandler) ProcessTelemetry(c *fiber.Ctx) error {
	var point domain.TelemetryDataPoint
	if err := c.BodyParser(&point); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	if err := point.Validate(); err != nil {
		h.logger.Debug("validation failed", "error", err)
		return ValidationError(c, err.Error())
	}

	results, err := h.engine.ProcessTelemetry(c.Context(), &point)
	if err != nil {
		h.logger.Error("failed to process telemetry", "deviceID", point.DeviceID, "error", err)
		return InternalError(c, "failed to process telemetry")
	}

	return Success(c, fiber.Map{
		"device_id": point.DeviceID,
		"triggered": results,
	})
}

// IngestTelemetry handles POST /v1/alarms/ingest-telemetry
// Publishes one telemetry data point to the queue for asynchronous
// evaluation and returns 202.
func (h *AlarmHandler) IngestTelemetry(c *fiber.Ctx) error {
	var point domain.TelemetryDataPoint
	if err := c.BodyParser(&point); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	if err := point.Validate(); err != nil {
		h.logger.Debug("validation failed", "error", err)
		return ValidationError(c, err.Error())
	}

	value, err := json.Marshal(&point)
	if err != nil {
		h.logger.Error("failed to serialize telemetry", "deviceID", point.DeviceID, "error", err)
		return InternalError(c, "failed to serialize telemetry")
	}

	msg := &queue.Message{
		Key:   []byte(point.DeviceID),
		Value: value,
	}
	if err := h.telemetry.Publish(c.Context(), msg); err != nil {
		h.logger.Error("failed to publish telemetry", "deviceID", point.DeviceID, "error", err)
		return InternalError(c, "failed to publish telemetry")
	}

	return Accepted(c, fiber.Map{
		"device_id": point.DeviceID,
		"status":    "queued",
	})
}

// TriggerTest handles POST /v1/alarm-rules/:id/trigger-test
// Fires a rule with a synthetic metric value through the normal pipeline.
func (h *AlarmHandler) TriggerTest(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	var req struct {
		TestValue *float64 `json:"test_value"`
	}
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}
	if req.TestValue == nil {
		return ValidationError(c, "test_value is required")
	}

	result, err := h.engine.TriggerTestAlarm(c.Context(), id, *req.TestValue)
	if err != nil {
		if errors.Is(err, domain.ErrAlarmRuleNotFound) {
			return NotFound(c, "alarm rule not found")
		}
		h.logger.Error("failed to trigger test alarm", "ruleID", id, "error", err)
		return InternalError(c, "failed to trigger test alarm")
	}

	if result == nil {
		return Success(c, fiber.Map{
			"triggered": false,
		})
	}

	return Success(c, fiber.Map{
		"triggered": true,
		"result":    result,
	})
}

// CleanupCache handles POST /v1/alarms/cleanup-cache
// Runs one sweep of the debounce cache on demand.
func (h *AlarmHandler) CleanupCache(c *fiber.Ctx) error {
	if err := h.engine.CleanupDebounceCache(c.Context()); err != nil {
		h.logger.Error("failed to clean debounce cache", "error", err)
		return InternalError(c, "failed to clean debounce cache")
	}

	return Success(c, fiber.Map{
		"status": "swept",
	})
}
