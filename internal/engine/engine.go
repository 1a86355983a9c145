// Package engine implements alarm rule evaluation and reaction dispatch.
// One telemetry point runs each applicable rule through extract -> compare ->
// gate -> record -> dispatch, with failures isolated per rule so a bad rule
// never aborts the batch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"

	"lifebox-go/internal/config"
	"lifebox-go/internal/dispatch"
	"lifebox-go/internal/domain"
	"lifebox-go/internal/metrics"
	"lifebox-go/internal/render"
	"lifebox-go/internal/store"
)

// Deps contains everything the engine needs.
type Deps struct {
	Rules      store.AlarmRuleRepository
	Events     store.AlarmEventRepository
	Devices    store.DeviceDirectory
	Debounce   store.DebounceStore
	Dispatcher *dispatch.Dispatcher
	Clock      clock.Clock
	Logger     *slog.Logger
	Config     config.EngineConfig
}

// Engine evaluates telemetry against alarm rules and dispatches reactions
// for recorded occurrences. Safe for concurrent use: debounce state is
// read-modify-written under a per-key lock.
type Engine struct {
	rules      store.AlarmRuleRepository
	events     store.AlarmEventRepository
	devices    store.DeviceDirectory
	debounce   store.DebounceStore
	dispatcher *dispatch.Dispatcher
	clock      clock.Clock
	logger     *slog.Logger

	suppressionWindow time.Duration
	sweepAge          time.Duration

	// gateLocks serializes the gate's read-modify-write per (rule, device)
	// key. Sharded so the lock table stays bounded.
	gateLocks [gateLockShards]sync.Mutex
}

const gateLockShards = 64

// New creates an engine.
func New(deps Deps) *Engine {
	return &Engine{
		rules:             deps.Rules,
		events:            deps.Events,
		devices:           deps.Devices,
		debounce:          deps.Debounce,
		dispatcher:        deps.Dispatcher,
		clock:             deps.Clock,
		logger:            deps.Logger,
		suppressionWindow: deps.Config.SuppressionWindow,
		sweepAge:          deps.Config.DebounceSweepAge,
	}
}

// ProcessTelemetry evaluates every applicable rule against one telemetry
// point and returns the alarms that triggered. A failure inside one rule's
// pipeline is logged and skipped; only a failure to load the rule set itself
// is returned to the caller.
func (e *Engine) ProcessTelemetry(ctx context.Context, point *domain.TelemetryDataPoint) ([]domain.AlarmTriggerResult, error) {
	start := time.Now()

	rules, err := e.rules.FindActiveRules(ctx, point.DeviceID)
	if err != nil {
		metrics.TelemetryPointsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}

	results := make([]domain.AlarmTriggerResult, 0)
	for _, rule := range rules {
		result, err := e.evaluateRule(ctx, rule, point)
		if err != nil {
			metrics.RulesEvaluatedTotal.WithLabelValues("error").Inc()
			e.logger.Error("rule evaluation failed",
				"error", err,
				"ruleID", rule.ID,
				"ruleName", rule.Name,
				"deviceID", point.DeviceID,
			)
			continue
		}
		if result != nil {
			results = append(results, *result)
		}
	}

	metrics.TelemetryPointsTotal.WithLabelValues("ok").Inc()
	metrics.EvaluationLatency.Observe(time.Since(start).Seconds())

	return results, nil
}

// evaluateRule runs one rule's pipeline. A nil result with nil error means
// the rule did not fire (metric missing, condition false, or gated).
func (e *Engine) evaluateRule(ctx context.Context, rule *domain.AlarmRule, point *domain.TelemetryDataPoint) (*domain.AlarmTriggerResult, error) {
	value, ok := point.Metric(rule.MetricName)
	if !ok {
		// Not an error: the device simply did not report this metric.
		metrics.RulesEvaluatedTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	if !rule.Operator.Compare(value, rule.Threshold) {
		metrics.RulesEvaluatedTotal.WithLabelValues("no_match").Inc()
		return nil, nil
	}

	trigger, err := e.shouldTrigger(ctx, rule, point.DeviceID, value)
	if err != nil {
		return nil, err
	}
	if !trigger {
		return nil, nil
	}

	event, devCtx, err := e.recordEvent(ctx, rule, point.DeviceID, value)
	if err != nil {
		return nil, err
	}

	e.dispatcher.Dispatch(ctx, rule, event, devCtx)

	metrics.RulesEvaluatedTotal.WithLabelValues("triggered").Inc()
	metrics.AlarmsTriggeredTotal.WithLabelValues(string(rule.Severity)).Inc()

	e.logger.Info("alarm triggered",
		"ruleID", rule.ID,
		"ruleName", rule.Name,
		"deviceID", point.DeviceID,
		"value", value,
		"threshold", rule.Threshold,
		"severity", rule.Severity,
		"eventID", event.ID,
	)

	return &domain.AlarmTriggerResult{
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		DeviceID:       point.DeviceID,
		MetricName:     rule.MetricName,
		TriggeredValue: value,
		ThresholdValue: rule.Threshold,
		Condition:      rule.Operator,
		Severity:       rule.Severity,
		EventID:        event.ID,
	}, nil
}

// shouldTrigger is the occurrence gate: it decides whether a condition match
// becomes a recorded occurrence.
func (e *Engine) shouldTrigger(ctx context.Context, rule *domain.AlarmRule, deviceID string, value float64) (bool, error) {
	if rule.UsesDebounce() {
		return e.debounceGate(ctx, rule, deviceID, value)
	}
	return e.suppressionGate(ctx, rule, deviceID)
}

// debounceGate requires the condition to hold for the rule's duration before
// triggering. The entry timestamp is refreshed on every sub-threshold match,
// so a fluctuating-but-true condition restarts the timer each time; a false
// reading never resets a pending entry, it only goes stale until swept.
func (e *Engine) debounceGate(ctx context.Context, rule *domain.AlarmRule, deviceID string, value float64) (bool, error) {
	unlock := e.lockGateKey(rule.ID, deviceID)
	defer unlock()

	now := e.clock.Now()

	entry, err := e.debounce.Get(ctx, rule.ID, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to read debounce entry: %w", err)
	}

	if entry == nil {
		entry = &store.DebounceEntry{
			RuleID:    rule.ID,
			DeviceID:  deviceID,
			Value:     value,
			Timestamp: now,
		}
		if err := e.debounce.Put(ctx, entry); err != nil {
			return false, fmt.Errorf("failed to create debounce entry: %w", err)
		}
		metrics.AlarmsSuppressedTotal.WithLabelValues("debounce_pending").Inc()
		return false, nil
	}

	if now.Sub(entry.Timestamp) >= rule.DebounceDuration() {
		if err := e.debounce.Delete(ctx, rule.ID, deviceID); err != nil {
			return false, fmt.Errorf("failed to clear debounce entry: %w", err)
		}
		return true, nil
	}

	entry.Value = value
	entry.Timestamp = now
	if err := e.debounce.Put(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to refresh debounce entry: %w", err)
	}
	metrics.AlarmsSuppressedTotal.WithLabelValues("debounce_pending").Inc()
	return false, nil
}

// suppressionGate refuses a new occurrence while an open event for the same
// rule/device exists inside the suppression window.
func (e *Engine) suppressionGate(ctx context.Context, rule *domain.AlarmRule, deviceID string) (bool, error) {
	since := e.clock.Now().Add(-e.suppressionWindow)

	open, err := e.events.FindOpenEvent(ctx, rule.ID, deviceID, since)
	if err != nil {
		return false, fmt.Errorf("failed to check for open event: %w", err)
	}
	if open != nil {
		metrics.AlarmsSuppressedTotal.WithLabelValues("duplicate").Inc()
		e.logger.Debug("alarm suppressed, open event exists",
			"ruleID", rule.ID,
			"deviceID", deviceID,
			"openEventID", open.ID,
		)
		return false, nil
	}
	return true, nil
}

// recordEvent renders the dashboard message and persists the occurrence.
// The device directory lookup is tolerant: an unresolvable device still
// records the event, with safe render defaults.
func (e *Engine) recordEvent(ctx context.Context, rule *domain.AlarmRule, deviceID string, value float64) (*domain.AlarmEvent, *domain.DeviceContext, error) {
	devCtx, err := e.devices.GetDeviceContext(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, domain.ErrDeviceNotFound) {
			e.logger.Warn("failed to resolve device context", "error", err, "deviceID", deviceID)
		}
		devCtx = nil
	}

	triggeredAt := e.clock.Now().UTC()
	event := domain.NewAlarmEvent(rule, deviceID, value, "", triggeredAt)
	event.ID = uuid.New().String()

	rcx := render.NewContext(rule, event, devCtx)
	fallback := fmt.Sprintf("%s: %s = %s (threshold: %s)",
		rule.Name, rule.MetricName, render.FormatValue(value), render.FormatValue(rule.Threshold))
	event.Message = render.Render(rule.DashboardMessage, rcx, fallback)

	if err := e.events.Create(ctx, event); err != nil {
		return nil, nil, fmt.Errorf("failed to persist alarm event: %w", err)
	}

	return event, devCtx, nil
}

// TriggerTestAlarm synthesizes a single-metric telemetry point from the
// rule's own metric name and routes it through ProcessTelemetry. Returns nil
// when the test value did not produce a trigger (condition false or gated).
func (e *Engine) TriggerTestAlarm(ctx context.Context, ruleID string, testValue float64) (*domain.AlarmTriggerResult, error) {
	rule, err := e.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	deviceID := rule.DeviceID
	if deviceID == "" {
		// Global rules have no device of their own; test fires against a
		// synthetic device and renders with directory defaults.
		deviceID = "test-device"
	}

	point := &domain.TelemetryDataPoint{
		DeviceID:  deviceID,
		Timestamp: e.clock.Now().UTC(),
		Data:      nestedMetric(rule.MetricName, testValue),
	}

	results, err := e.ProcessTelemetry(ctx, point)
	if err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].RuleID == ruleID {
			return &results[i], nil
		}
	}
	return nil, nil
}

// CleanupDebounceCache evicts debounce entries whose timestamp is older than
// the sweep age. Idempotent; side effects on internal state only.
func (e *Engine) CleanupDebounceCache(ctx context.Context) error {
	cutoff := e.clock.Now().Add(-e.sweepAge)

	removed, err := e.debounce.Sweep(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to sweep debounce cache: %w", err)
	}

	if removed > 0 {
		metrics.DebounceEntriesSweptTotal.Add(float64(removed))
		e.logger.Info("debounce cache swept", "removed", removed)
	}
	return nil
}

// lockGateKey locks the shard owning a (rule, device) key and returns the
// unlock function.
func (e *Engine) lockGateKey(ruleID, deviceID string) func() {
	h := fnv.New32a()
	h.Write([]byte(ruleID))
	h.Write([]byte{':'})
	h.Write([]byte(deviceID))
	shard := &e.gateLocks[h.Sum32()%gateLockShards]
	shard.Lock()
	return shard.Unlock
}

// nestedMetric builds the nested data map a dotted metric path expects.
func nestedMetric(path string, value float64) map[string]any {
	segments := strings.Split(path, ".")
	data := make(map[string]any)
	current := data
	for i, segment := range segments {
		if i == len(segments)-1 {
			current[segment] = value
			break
		}
		next := make(map[string]any)
		current[segment] = next
		current = next
	}
	return data
}
