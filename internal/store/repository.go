// Package store defines interfaces for data persistence and debounce state.
// These abstractions allow swapping implementations (PostgreSQL, Redis,
// in-memory) without changing engine logic.
package store

import (
	"context"
	"time"

	"lifebox-go/internal/domain"
)

// AlarmRuleRepository defines the interface for alarm rule persistence.
// Rules are owned by operators; the engine only reads them.
type AlarmRuleRepository interface {
	// Create stores a new rule with its reactions.
	Create(ctx context.Context, rule *domain.AlarmRule) error

	// Update modifies an existing rule and replaces its reactions.
	Update(ctx context.Context, rule *domain.AlarmRule) error

	// Delete removes a rule and its reactions by ID.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a rule with all its reactions.
	GetByID(ctx context.Context, id string) (*domain.AlarmRule, error)

	// List retrieves rules matching the filter criteria.
	List(ctx context.Context, filter domain.AlarmRuleFilter) ([]*domain.AlarmRule, error)

	// FindActiveRules returns the enabled rules applicable to a device:
	// rules scoped to that device plus global rules.
	FindActiveRules(ctx context.Context, deviceID string) ([]*domain.AlarmRule, error)
}

// AlarmEventRepository defines the interface for alarm event persistence.
type AlarmEventRepository interface {
	// Create stores a new event.
	Create(ctx context.Context, event *domain.AlarmEvent) error

	// Update modifies an existing event (acknowledge/resolve).
	Update(ctx context.Context, event *domain.AlarmEvent) error

	// GetByID retrieves an event by ID.
	GetByID(ctx context.Context, id string) (*domain.AlarmEvent, error)

	// FindOpenEvent returns the most recent open (unresolved) event for a
	// rule/device pair triggered at or after since. Returns nil, nil when
	// none exists.
	FindOpenEvent(ctx context.Context, ruleID, deviceID string, since time.Time) (*domain.AlarmEvent, error)

	// AppendToMessage appends a suffix to an event's rendered message.
	AppendToMessage(ctx context.Context, eventID, suffix string) error

	// List retrieves events matching the filter criteria.
	List(ctx context.Context, filter domain.AlarmEventFilter) ([]*domain.AlarmEvent, error)
}

// DeviceDirectory resolves a device into its owning client's contact data.
type DeviceDirectory interface {
	// GetDeviceContext returns the device joined with its client.
	GetDeviceContext(ctx context.Context, deviceID string) (*domain.DeviceContext, error)
}
