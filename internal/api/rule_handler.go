package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"lifebox-go/internal/domain"
	"lifebox-go/internal/store"
)

// RuleHandler handles HTTP requests for alarm rule operations.
type RuleHandler struct {
	repo   store.AlarmRuleRepository
	logger *slog.Logger
}

// NewRuleHandler creates a new alarm rule handler.
func NewRuleHandler(repo store.AlarmRuleRepository, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		repo:   repo,
		logger: logger,
	}
}

// Create handles POST /v1/alarm-rules
// Creates a new alarm rule.
func (h *RuleHandler) Create(c *fiber.Ctx) error {
	var req domain.CreateAlarmRuleRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		h.logger.Debug("validation failed", "error", err)
		return ValidationError(c, err.Error())
	}

	id := uuid.New().String()
	rule := req.ToAlarmRule(id)
	for i := range rule.Reactions {
		if rule.Reactions[i].ID == "" {
			rule.Reactions[i].ID = uuid.New().String()
		}
	}

	if err := h.repo.Create(c.Context(), rule); err != nil {
		h.logger.Error("failed to create alarm rule", "error", err)
		return InternalError(c, "failed to create alarm rule")
	}

	h.logger.Info("created alarm rule", "id", rule.ID, "name", rule.Name)
	return Created(c, rule)
}

// List handles GET /v1/alarm-rules
// Returns alarm rules matching optional query filters.
func (h *RuleHandler) List(c *fiber.Ctx) error {
	filter := domain.AlarmRuleFilter{
		DeviceID: c.Query("device_id"),
		Severity: domain.Severity(c.Query("severity")),
		Limit:    c.QueryInt("limit"),
		Offset:   c.QueryInt("offset"),
	}

	if raw := c.Query("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return BadRequest(c, "enabled must be true or false")
		}
		filter.Enabled = &enabled
	}

	rules, err := h.repo.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list alarm rules", "error", err)
		return InternalError(c, "failed to list alarm rules")
	}

	return Success(c, rules)
}

// GetByID handles GET /v1/alarm-rules/:id
// Returns a single alarm rule by ID.
func (h *RuleHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	rule, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlarmRuleNotFound) {
			return NotFound(c, "alarm rule not found")
		}
		h.logger.Error("failed to get alarm rule", "id", id, "error", err)
		return InternalError(c, "failed to get alarm rule")
	}

	return Success(c, rule)
}

// Update handles PUT /v1/alarm-rules/:id
// Updates an existing alarm rule.
func (h *RuleHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	var req domain.UpdateAlarmRuleRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		h.logger.Debug("validation failed", "error", err)
		return ValidationError(c, err.Error())
	}

	rule, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlarmRuleNotFound) {
			return NotFound(c, "alarm rule not found")
		}
		h.logger.Error("failed to get alarm rule", "id", id, "error", err)
		return InternalError(c, "failed to get alarm rule")
	}

	req.ApplyTo(rule)
	for i := range rule.Reactions {
		if rule.Reactions[i].ID == "" {
			rule.Reactions[i].ID = uuid.New().String()
		}
	}

	if err := h.repo.Update(c.Context(), rule); err != nil {
		h.logger.Error("failed to update alarm rule", "id", id, "error", err)
		return InternalError(c, "failed to update alarm rule")
	}

	h.logger.Info("updated alarm rule", "id", rule.ID)
	return Success(c, rule)
}

// Delete handles DELETE /v1/alarm-rules/:id
// Deletes an alarm rule.
func (h *RuleHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	if err := h.repo.Delete(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAlarmRuleNotFound) {
			return NotFound(c, "alarm rule not found")
		}
		h.logger.Error("failed to delete alarm rule", "id", id, "error", err)
		return InternalError(c, "failed to delete alarm rule")
	}

	h.logger.Info("deleted alarm rule", "id", id)
	return NoContent(c)
}
