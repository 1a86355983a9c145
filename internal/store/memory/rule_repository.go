package memory

import (
	"context"
	"sync"

	"lifebox-go/internal/domain"
)

// AlarmRuleRepository is an in-memory implementation of
// store.AlarmRuleRepository. Rules are stored in a map by ID.
type AlarmRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*domain.AlarmRule
}

// NewAlarmRuleRepository creates a new in-memory rule repository.
func NewAlarmRuleRepository() *AlarmRuleRepository {
	return &AlarmRuleRepository{
		rules: make(map[string]*domain.AlarmRule),
	}
}

// Create stores a new rule.
func (r *AlarmRuleRepository) Create(ctx context.Context, rule *domain.AlarmRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[rule.ID] = copyRule(rule)
	return nil
}

// Update modifies an existing rule.
func (r *AlarmRuleRepository) Update(ctx context.Context, rule *domain.AlarmRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; !exists {
		return domain.ErrAlarmRuleNotFound
	}

	r.rules[rule.ID] = copyRule(rule)
	return nil
}

// Delete removes a rule.
func (r *AlarmRuleRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[id]; !exists {
		return domain.ErrAlarmRuleNotFound
	}

	delete(r.rules, id)
	return nil
}

// GetByID retrieves a rule by its ID.
func (r *AlarmRuleRepository) GetByID(ctx context.Context, id string) (*domain.AlarmRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, exists := r.rules[id]
	if !exists {
		return nil, domain.ErrAlarmRuleNotFound
	}

	return copyRule(rule), nil
}

// List retrieves rules matching the filter criteria.
func (r *AlarmRuleRepository) List(ctx context.Context, filter domain.AlarmRuleFilter) ([]*domain.AlarmRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.AlarmRule
	for _, rule := range r.rules {
		if filter.DeviceID != "" && rule.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Severity != "" && rule.Severity != filter.Severity {
			continue
		}
		if filter.Enabled != nil && rule.Enabled != *filter.Enabled {
			continue
		}
		results = append(results, copyRule(rule))
	}

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

// FindActiveRules retrieves every enabled rule applicable to a device:
// rules scoped to that device plus global rules.
func (r *AlarmRuleRepository) FindActiveRules(ctx context.Context, deviceID string) ([]*domain.AlarmRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*domain.AlarmRule, 0)
	for _, rule := range r.rules {
		if !rule.Enabled {
			continue
		}
		if rule.DeviceID != "" && rule.DeviceID != deviceID {
			continue
		}
		results = append(results, copyRule(rule))
	}

	return results, nil
}

// Clear removes all data from the repository. Useful for test cleanup.
func (r *AlarmRuleRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = make(map[string]*domain.AlarmRule)
}

// copyRule deep-copies a rule so callers cannot mutate stored state
// through the reactions slice.
func copyRule(rule *domain.AlarmRule) *domain.AlarmRule {
	ruleCopy := *rule
	if rule.Reactions != nil {
		ruleCopy.Reactions = make([]domain.AlarmReaction, len(rule.Reactions))
		copy(ruleCopy.Reactions, rule.Reactions)
	}
	return &ruleCopy
}
