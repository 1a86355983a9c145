package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lifebox-go/internal/domain"
)

// AlarmEventRepository is an in-memory implementation of
// store.AlarmEventRepository. Events are stored in a map by ID, with a
// secondary index by (rule, device) for the open-event lookup.
type AlarmEventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.AlarmEvent

	// byRuleDevice holds event IDs per rule/device pair, in insertion order.
	byRuleDevice map[string][]string
}

// NewAlarmEventRepository creates a new in-memory event repository.
func NewAlarmEventRepository() *AlarmEventRepository {
	return &AlarmEventRepository{
		events:       make(map[string]*domain.AlarmEvent),
		byRuleDevice: make(map[string][]string),
	}
}

// Create stores a new event.
func (r *AlarmEventRepository) Create(ctx context.Context, event *domain.AlarmEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eventCopy := *event
	r.events[event.ID] = &eventCopy

	key := ruleDeviceKey(event.RuleID, event.DeviceID)
	r.byRuleDevice[key] = append(r.byRuleDevice[key], event.ID)

	return nil
}

// Update modifies an existing event.
func (r *AlarmEventRepository) Update(ctx context.Context, event *domain.AlarmEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.ID]; !exists {
		return domain.ErrAlarmEventNotFound
	}

	eventCopy := *event
	r.events[event.ID] = &eventCopy
	return nil
}

// GetByID retrieves an event by its ID.
func (r *AlarmEventRepository) GetByID(ctx context.Context, id string) (*domain.AlarmEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists {
		return nil, domain.ErrAlarmEventNotFound
	}

	result := *event
	return &result, nil
}

// FindOpenEvent returns the most recent unresolved event for a rule/device
// pair triggered at or after since, or nil when none exists.
func (r *AlarmEventRepository) FindOpenEvent(ctx context.Context, ruleID, deviceID string, since time.Time) (*domain.AlarmEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byRuleDevice[ruleDeviceKey(ruleID, deviceID)]

	var latest *domain.AlarmEvent
	for _, id := range ids {
		event := r.events[id]
		if event == nil || !event.IsOpen() {
			continue
		}
		if event.TriggeredAt.Before(since) {
			continue
		}
		if latest == nil || event.TriggeredAt.After(latest.TriggeredAt) {
			latest = event
		}
	}

	if latest == nil {
		return nil, nil
	}

	result := *latest
	return &result, nil
}

// AppendToMessage appends a suffix to an event's message.
func (r *AlarmEventRepository) AppendToMessage(ctx context.Context, eventID, suffix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, exists := r.events[eventID]
	if !exists {
		return domain.ErrAlarmEventNotFound
	}

	event.Message += suffix
	return nil
}

// List retrieves events matching the filter criteria, newest first.
func (r *AlarmEventRepository) List(ctx context.Context, filter domain.AlarmEventFilter) ([]*domain.AlarmEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.AlarmEvent
	for _, event := range r.events {
		if filter.RuleID != "" && event.RuleID != filter.RuleID {
			continue
		}
		if filter.DeviceID != "" && event.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Severity != "" && event.Severity != filter.Severity {
			continue
		}
		if filter.OpenOnly && !event.IsOpen() {
			continue
		}
		eventCopy := *event
		results = append(results, &eventCopy)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].TriggeredAt.After(results[j].TriggeredAt)
	})

	start := filter.Offset
	if start > len(results) {
		start = len(results)
	}

	end := len(results)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	return results[start:end], nil
}

// Clear removes all data from the repository. Useful for test cleanup.
func (r *AlarmEventRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = make(map[string]*domain.AlarmEvent)
	r.byRuleDevice = make(map[string][]string)
}

func ruleDeviceKey(ruleID, deviceID string) string {
	return ruleID + ":" + deviceID
}
