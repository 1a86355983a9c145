// Package domain contains the core business entities for the Lifebox alarm
// engine. These models represent the ubiquitous language of the alarm domain:
// rules, reactions, events, and telemetry.
package domain

import (
	"errors"
	"time"
)

// Operator is the comparison applied between a metric value and a rule threshold.
type Operator string

const (
	OperatorGT  Operator = "gt"
	OperatorLT  Operator = "lt"
	OperatorGTE Operator = "gte"
	OperatorLTE Operator = "lte"
	OperatorEQ  Operator = "eq"
	OperatorNEQ Operator = "neq"

	// OperatorSpike and OperatorDrop are accepted operator spellings that
	// behave as gt/lt. True rate-of-change detection is not implemented;
	// changing that would change externally observable trigger behavior.
	OperatorSpike Operator = "spike"
	OperatorDrop  Operator = "drop"
)

// IsValid returns true if the operator is a known valid value.
func (o Operator) IsValid() bool {
	switch o {
	case OperatorGT, OperatorLT, OperatorGTE, OperatorLTE,
		OperatorEQ, OperatorNEQ, OperatorSpike, OperatorDrop:
		return true
	default:
		return false
	}
}

// Compare evaluates value against threshold using this operator.
// It is a pure function with no tolerance applied to eq/neq.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OperatorGT, OperatorSpike:
		return value > threshold
	case OperatorLT, OperatorDrop:
		return value < threshold
	case OperatorGTE:
		return value >= threshold
	case OperatorLTE:
		return value <= threshold
	case OperatorEQ:
		return value == threshold
	case OperatorNEQ:
		return value != threshold
	default:
		return false
	}
}

// Text returns the operator rendered as human-readable text, used by the
// {condition} template token.
func (o Operator) Text() string {
	switch o {
	case OperatorGT:
		return "greater than"
	case OperatorLT:
		return "less than"
	case OperatorGTE:
		return "greater than or equal to"
	case OperatorLTE:
		return "less than or equal to"
	case OperatorEQ:
		return "equal to"
	case OperatorNEQ:
		return "not equal to"
	case OperatorSpike:
		return "spiking above"
	case OperatorDrop:
		return "dropping below"
	default:
		return string(o)
	}
}

// Severity represents the severity level of an alarm rule and its events.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// IsValid returns true if the severity is a known valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency:
		return true
	default:
		return false
	}
}

// ReactionType identifies the channel a reaction delivers through.
type ReactionType string

const (
	ReactionDashboard ReactionType = "dashboard"
	ReactionSMS       ReactionType = "sms"
	ReactionEmail     ReactionType = "email"
	ReactionShutdown  ReactionType = "shutdown"
	ReactionCommand   ReactionType = "command"
)

// IsValid returns true if the reaction type is a known valid value.
func (t ReactionType) IsValid() bool {
	switch t {
	case ReactionDashboard, ReactionSMS, ReactionEmail, ReactionShutdown, ReactionCommand:
		return true
	default:
		return false
	}
}

// ReactionConfig is the opaque per-reaction configuration blob. Its shape
// depends on the reaction type, so typed accessors below probe the keys the
// dispatcher understands.
type ReactionConfig map[string]any

// PhoneNumbers returns the phone numbers configured on an sms reaction.
func (c ReactionConfig) PhoneNumbers() []string {
	return c.stringSlice("phoneNumbers")
}

// EmailAddresses returns the addresses configured on an email reaction.
func (c ReactionConfig) EmailAddresses() []string {
	return c.stringSlice("emailAddresses")
}

// CommandType returns the command type of a command reaction, or "" if unset.
func (c ReactionConfig) CommandType() string {
	s, _ := c["commandType"].(string)
	return s
}

// Reason returns the reason text of a command reaction, or "" if unset.
func (c ReactionConfig) Reason() string {
	s, _ := c["reason"].(string)
	return s
}

// Payload returns the command payload of a command reaction, or nil if unset.
func (c ReactionConfig) Payload() map[string]any {
	m, _ := c["payload"].(map[string]any)
	return m
}

func (c ReactionConfig) stringSlice(key string) []string {
	raw, ok := c[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// AlarmReaction is one configured response attached to an alarm rule.
type AlarmReaction struct {
	// ID is the unique identifier for this reaction.
	ID string `json:"id"`

	// RuleID is the owning alarm rule.
	RuleID string `json:"rule_id"`

	// Type is the delivery channel (dashboard, sms, email, shutdown, command).
	Type ReactionType `json:"type"`

	// Enabled controls whether the dispatcher runs this reaction.
	Enabled bool `json:"enabled"`

	// Config is the type-dependent configuration blob.
	Config ReactionConfig `json:"config,omitempty"`
}

// AlarmRule is a standing alarm definition owned by operators.
// The engine treats rules as read-only.
type AlarmRule struct {
	// ID is the unique identifier for this rule.
	ID string `json:"id"`

	// Name is a human-readable name for the rule.
	Name string `json:"name"`

	// DeviceID scopes the rule to one device. Empty means the rule is
	// global and applies to every device.
	DeviceID string `json:"device_id,omitempty"`

	// MetricName is the dot-path (possibly aliased) of the telemetry metric
	// this rule watches.
	MetricName string `json:"metric_name"`

	// Operator is the comparison applied to the extracted value.
	Operator Operator `json:"operator"`

	// Threshold is the numeric comparison operand.
	Threshold float64 `json:"threshold"`

	// ThresholdDurationSeconds selects the occurrence gate: a value > 0
	// requires the condition to hold for that many seconds before an event
	// is recorded; 0 disables the debounce and uses duplicate suppression.
	ThresholdDurationSeconds int `json:"threshold_duration_seconds"`

	// Severity is copied onto events at trigger time.
	Severity Severity `json:"severity"`

	// Enabled controls whether the engine evaluates this rule at all.
	Enabled bool `json:"enabled"`

	// Optional custom message templates per channel. Empty means the
	// channel's default message is used.
	DashboardMessage string `json:"dashboard_message,omitempty"`
	SmsMessage       string `json:"sms_message,omitempty"`
	EmailMessage     string `json:"email_message,omitempty"`

	// Reactions is the ordered set of responses run when the rule fires.
	Reactions []AlarmReaction `json:"reactions,omitempty"`

	// CreatedAt is when the rule was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the rule was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validation errors for AlarmRule.
var (
	ErrAlarmRuleNotFound   = errors.New("alarm rule not found")
	ErrEmptyRuleName       = errors.New("name is required")
	ErrEmptyMetricName     = errors.New("metric_name is required")
	ErrInvalidOperator     = errors.New("operator must be one of gt, lt, gte, lte, eq, neq, spike, drop")
	ErrInvalidSeverity     = errors.New("severity must be 'info', 'warning', 'critical', or 'emergency'")
	ErrNegativeDuration    = errors.New("threshold_duration_seconds must be >= 0")
	ErrInvalidReactionType = errors.New("reaction type must be one of dashboard, sms, email, shutdown, command")
)

// Validate checks the rule has all required fields with valid values.
// Returns the first validation failure, or nil if valid.
func (r *AlarmRule) Validate() error {
	if r.Name == "" {
		return ErrEmptyRuleName
	}
	if r.MetricName == "" {
		return ErrEmptyMetricName
	}
	if !r.Operator.IsValid() {
		return ErrInvalidOperator
	}
	if !r.Severity.IsValid() {
		return ErrInvalidSeverity
	}
	if r.ThresholdDurationSeconds < 0 {
		return ErrNegativeDuration
	}
	for i := range r.Reactions {
		if !r.Reactions[i].Type.IsValid() {
			return ErrInvalidReactionType
		}
	}
	return nil
}

// UsesDebounce returns true if this rule gates occurrences on a minimum
// condition duration rather than duplicate suppression.
func (r *AlarmRule) UsesDebounce() bool {
	return r.ThresholdDurationSeconds > 0
}

// DebounceDuration returns the required condition hold time.
func (r *AlarmRule) DebounceDuration() time.Duration {
	return time.Duration(r.ThresholdDurationSeconds) * time.Second
}

// IsGlobal returns true if the rule applies to all devices.
func (r *AlarmRule) IsGlobal() bool {
	return r.DeviceID == ""
}

// EnabledReactions returns the rule's reactions that are enabled, in order.
func (r *AlarmRule) EnabledReactions() []AlarmReaction {
	out := make([]AlarmReaction, 0, len(r.Reactions))
	for _, reaction := range r.Reactions {
		if reaction.Enabled {
			out = append(out, reaction)
		}
	}
	return out
}

// AlarmRuleFilter provides filtering options for querying rules.
type AlarmRuleFilter struct {
	DeviceID string
	Severity Severity
	Enabled  *bool
	Limit    int
	Offset   int
}

// CreateAlarmRuleRequest represents the input for creating an alarm rule.
type CreateAlarmRuleRequest struct {
	Name                     string          `json:"name"`
	DeviceID                 string          `json:"device_id"`
	MetricName               string          `json:"metric_name"`
	Operator                 Operator        `json:"operator"`
	Threshold                float64         `json:"threshold"`
	ThresholdDurationSeconds int             `json:"threshold_duration_seconds"`
	Severity                 Severity        `json:"severity"`
	Enabled                  *bool           `json:"enabled"`
	DashboardMessage         string          `json:"dashboard_message"`
	SmsMessage               string          `json:"sms_message"`
	EmailMessage             string          `json:"email_message"`
	Reactions                []AlarmReaction `json:"reactions"`
}

// Validate checks the create request has required fields.
func (r *CreateAlarmRuleRequest) Validate() error {
	rule := r.ToAlarmRule("validate")
	return rule.Validate()
}

// ToAlarmRule converts the request to an AlarmRule entity. Enabled defaults
// to true when omitted, both on the rule and on each reaction lacking an
// explicit value.
func (r *CreateAlarmRuleRequest) ToAlarmRule(id string) *AlarmRule {
	now := time.Now().UTC()

	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}

	reactions := make([]AlarmReaction, len(r.Reactions))
	copy(reactions, r.Reactions)
	for i := range reactions {
		reactions[i].RuleID = id
	}

	return &AlarmRule{
		ID:                       id,
		Name:                     r.Name,
		DeviceID:                 r.DeviceID,
		MetricName:               r.MetricName,
		Operator:                 r.Operator,
		Threshold:                r.Threshold,
		ThresholdDurationSeconds: r.ThresholdDurationSeconds,
		Severity:                 r.Severity,
		Enabled:                  enabled,
		DashboardMessage:         r.DashboardMessage,
		SmsMessage:               r.SmsMessage,
		EmailMessage:             r.EmailMessage,
		Reactions:                reactions,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// UpdateAlarmRuleRequest represents the input for updating an alarm rule.
type UpdateAlarmRuleRequest struct {
	Name                     string          `json:"name"`
	DeviceID                 string          `json:"device_id"`
	MetricName               string          `json:"metric_name"`
	Operator                 Operator        `json:"operator"`
	Threshold                float64         `json:"threshold"`
	ThresholdDurationSeconds int             `json:"threshold_duration_seconds"`
	Severity                 Severity        `json:"severity"`
	Enabled                  *bool           `json:"enabled"`
	DashboardMessage         string          `json:"dashboard_message"`
	SmsMessage               string          `json:"sms_message"`
	EmailMessage             string          `json:"email_message"`
	Reactions                []AlarmReaction `json:"reactions"`
}

// Validate checks the update request has required fields.
func (r *UpdateAlarmRuleRequest) Validate() error {
	create := CreateAlarmRuleRequest(*r)
	return create.Validate()
}

// ApplyTo updates an existing AlarmRule with the request values.
func (r *UpdateAlarmRuleRequest) ApplyTo(rule *AlarmRule) {
	rule.Name = r.Name
	rule.DeviceID = r.DeviceID
	rule.MetricName = r.MetricName
	rule.Operator = r.Operator
	rule.Threshold = r.Threshold
	rule.ThresholdDurationSeconds = r.ThresholdDurationSeconds
	rule.Severity = r.Severity
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	rule.DashboardMessage = r.DashboardMessage
	rule.SmsMessage = r.SmsMessage
	rule.EmailMessage = r.EmailMessage

	reactions := make([]AlarmReaction, len(r.Reactions))
	copy(reactions, r.Reactions)
	for i := range reactions {
		reactions[i].RuleID = rule.ID
	}
	rule.Reactions = reactions

	rule.UpdatedAt = time.Now().UTC()
}
