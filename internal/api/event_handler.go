package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"lifebox-go/internal/domain"
	"lifebox-go/internal/store"
)

// EventHandler handles HTTP requests for alarm event operations.
type EventHandler struct {
	repo   store.AlarmEventRepository
	logger *slog.Logger
}

// NewEventHandler creates a new alarm event handler.
func NewEventHandler(repo store.AlarmEventRepository, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		repo:   repo,
		logger: logger,
	}
}

// List handles GET /v1/alarm-events
// Returns alarm events matching optional query filters, newest first.
func (h *EventHandler) List(c *fiber.Ctx) error {
	filter := domain.AlarmEventFilter{
		RuleID:   c.Query("rule_id"),
		DeviceID: c.Query("device_id"),
		Severity: domain.Severity(c.Query("severity")),
		OpenOnly: c.QueryBool("open"),
		Limit:    c.QueryInt("limit"),
		Offset:   c.QueryInt("offset"),
	}

	events, err := h.repo.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list alarm events", "error", err)
		return InternalError(c, "failed to list alarm events")
	}

	return Success(c, events)
}

// GetByID handles GET /v1/alarm-events/:id
// Returns a single alarm event by ID.
func (h *EventHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	event, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlarmEventNotFound) {
			return NotFound(c, "alarm event not found")
		}
		h.logger.Error("failed to get alarm event", "id", id, "error", err)
		return InternalError(c, "failed to get alarm event")
	}

	return Success(c, event)
}

// Acknowledge handles POST /v1/alarm-events/:id/acknowledge
// Marks an event acknowledged by an operator.
func (h *EventHandler) Acknowledge(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	var req struct {
		AcknowledgedBy string `json:"acknowledged_by"`
	}
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}
	if req.AcknowledgedBy == "" {
		return ValidationError(c, "acknowledged_by is required")
	}

	event, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlarmEventNotFound) {
			return NotFound(c, "alarm event not found")
		}
		h.logger.Error("failed to get alarm event", "id", id, "error", err)
		return InternalError(c, "failed to get alarm event")
	}

	event.Acknowledge(req.AcknowledgedBy, time.Now().UTC())

	if err := h.repo.Update(c.Context(), event); err != nil {
		h.logger.Error("failed to acknowledge alarm event", "id", id, "error", err)
		return InternalError(c, "failed to acknowledge alarm event")
	}

	h.logger.Info("acknowledged alarm event", "id", id, "by", req.AcknowledgedBy)
	return Success(c, event)
}

// Resolve handles POST /v1/alarm-events/:id/resolve
// Closes an event, re-arming duplicate suppression for its rule/device pair.
func (h *EventHandler) Resolve(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	event, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlarmEventNotFound) {
			return NotFound(c, "alarm event not found")
		}
		h.logger.Error("failed to get alarm event", "id", id, "error", err)
		return InternalError(c, "failed to get alarm event")
	}

	if !event.IsOpen() {
		return Conflict(c, "alarm event already resolved")
	}

	event.Resolve(time.Now().UTC())

	if err := h.repo.Update(c.Context(), event); err != nil {
		h.logger.Error("failed to resolve alarm event", "id", id, "error", err)
		return InternalError(c, "failed to resolve alarm event")
	}

	h.logger.Info("resolved alarm event", "id", id)
	return Success(c, event)
}
