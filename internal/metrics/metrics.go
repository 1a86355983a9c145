// Package metrics provides Prometheus metrics for the Lifebox alarm engine.
// It tracks telemetry evaluation, gate decisions, and reaction dispatch to
// measure trigger latency and channel health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "lifebox"
)

// Telemetry metrics track the evaluation pipeline.
var (
	// TelemetryPointsTotal counts telemetry points handed to the engine.
	TelemetryPointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_points_total",
			Help:      "Total number of telemetry points processed by the engine",
		},
		[]string{"result"}, // result: ok, malformed, error
	)

	// RulesEvaluatedTotal counts per-rule pipeline runs.
	RulesEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_evaluated_total",
			Help:      "Total number of rule evaluations",
		},
		[]string{"result"}, // result: triggered, no_match, skipped, error
	)

	// EvaluationLatency measures the time to run one telemetry point
	// through all applicable rules.
	EvaluationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_latency_seconds",
			Help:      "Time to evaluate one telemetry point against all applicable rules",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Alarm metrics track recorded occurrences and gate behavior.
var (
	// AlarmsTriggeredTotal counts recorded alarm events.
	AlarmsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_triggered_total",
			Help:      "Total number of alarm events recorded",
		},
		[]string{"severity"},
	)

	// AlarmsSuppressedTotal counts condition matches the gate held back.
	AlarmsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_suppressed_total",
			Help:      "Total number of condition matches suppressed by the occurrence gate",
		},
		[]string{"reason"}, // reason: debounce_pending, duplicate
	)

	// DebounceEntriesSweptTotal counts entries removed by the janitor.
	DebounceEntriesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_entries_swept_total",
			Help:      "Total number of stale debounce entries removed by the janitor",
		},
	)
)

// Reaction metrics track the dispatch fan-out.
var (
	// ReactionsDispatchedTotal counts reaction executions.
	ReactionsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_dispatched_total",
			Help:      "Total number of reactions dispatched",
		},
		[]string{"type", "status"}, // status: success, failure, skipped
	)

	// NotificationsSentTotal counts individual delivery attempts.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notification delivery attempts",
		},
		[]string{"channel", "status"}, // channel: sms, email
	)

	// DispatchLatency measures the time to fan one event out to all
	// enabled reactions.
	DispatchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Time to dispatch all reactions for one alarm event",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Storage metrics track database and cache operations.
var (
	// StorageOperationLatency measures latency of storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"store", "operation"},
	)

	// StorageOperationsTotal counts storage operations.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"store", "operation", "status"},
	)
)
