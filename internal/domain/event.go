package domain

import (
	"errors"
	"time"
)

// ErrAlarmEventNotFound is returned when an alarm event cannot be found.
var ErrAlarmEventNotFound = errors.New("alarm event not found")

// AlarmEvent is one recorded occurrence of a rule firing. It is created once
// by the engine and later mutated only by operator acknowledge/resolve
// actions. ResolvedAt == nil marks the event "open", which is load-bearing
// for duplicate suppression.
type AlarmEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// RuleID references the rule that fired.
	RuleID string `json:"rule_id"`

	// DeviceID references the device whose telemetry triggered the rule.
	DeviceID string `json:"device_id"`

	// Severity is copied from the rule at trigger time.
	Severity Severity `json:"severity"`

	// TriggeredValue is the metric value that crossed the threshold.
	TriggeredValue float64 `json:"triggered_value"`

	// Message is the rendered dashboard message. Command reactions may
	// append a short status suffix after dispatch.
	Message string `json:"message"`

	// TriggeredAt is the trigger timestamp.
	TriggeredAt time.Time `json:"triggered_at"`

	// Acknowledged marks operator acknowledgement.
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	// ResolvedAt is when the event was resolved. Nil while open.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// NewAlarmEvent creates an event for a rule firing on a device.
func NewAlarmEvent(rule *AlarmRule, deviceID string, value float64, message string, triggeredAt time.Time) *AlarmEvent {
	return &AlarmEvent{
		RuleID:         rule.ID,
		DeviceID:       deviceID,
		Severity:       rule.Severity,
		TriggeredValue: value,
		Message:        message,
		TriggeredAt:    triggeredAt,
	}
}

// IsOpen returns true while the event has not been resolved.
func (e *AlarmEvent) IsOpen() bool {
	return e.ResolvedAt == nil
}

// Acknowledge marks the event acknowledged by an operator.
func (e *AlarmEvent) Acknowledge(by string, at time.Time) {
	e.Acknowledged = true
	e.AcknowledgedBy = by
	e.AcknowledgedAt = &at
}

// Resolve closes the event.
func (e *AlarmEvent) Resolve(at time.Time) {
	e.ResolvedAt = &at
}

// AlarmEventFilter provides filtering options for querying events.
type AlarmEventFilter struct {
	RuleID   string
	DeviceID string
	Severity Severity
	OpenOnly bool
	Limit    int
	Offset   int
}

// AlarmTriggerResult summarizes one successful trigger for the caller of
// ProcessTelemetry.
type AlarmTriggerResult struct {
	RuleID         string   `json:"rule_id"`
	RuleName       string   `json:"rule_name"`
	DeviceID       string   `json:"device_id"`
	MetricName     string   `json:"metric_name"`
	TriggeredValue float64  `json:"triggered_value"`
	ThresholdValue float64  `json:"threshold_value"`
	Condition      Operator `json:"condition"`
	Severity       Severity `json:"severity"`
	EventID        string   `json:"event_id"`
}
