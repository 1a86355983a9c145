package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"

	"lifebox-go/internal/command"
	"lifebox-go/internal/config"
	"lifebox-go/internal/dispatch"
	"lifebox-go/internal/domain"
	"lifebox-go/internal/engine"
	"lifebox-go/internal/notify"
	"lifebox-go/internal/queue"
	queuemem "lifebox-go/internal/queue/memory"
	storemem "lifebox-go/internal/store/memory"
)

func testConsumer(t *testing.T, q queue.Consumer) (*Consumer, *storemem.AlarmRuleRepository, *storemem.AlarmEventRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	rules := storemem.NewAlarmRuleRepository()
	events := storemem.NewAlarmEventRepository()
	dispatcher := dispatch.New(
		notify.NewLogSmsSender(logger),
		notify.NewLogEmailSender(logger),
		command.NewLogEnqueuer(logger),
		events,
		logger,
	)

	eng := engine.New(engine.Deps{
		Rules:      rules,
		Events:     events,
		Devices:    storemem.NewDeviceDirectory(),
		Debounce:   storemem.NewDebounceStore(),
		Dispatcher: dispatcher,
		Clock:      fakeclock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Logger:     logger,
		Config: config.EngineConfig{
			SuppressionWindow: 5 * time.Minute,
			DebounceSweepAge:  10 * time.Minute,
		},
	})

	return NewConsumer(q, eng, logger), rules, events
}

func telemetryMessage(t *testing.T, point *domain.TelemetryDataPoint) *queue.Message {
	t.Helper()
	value, err := json.Marshal(point)
	if err != nil {
		t.Fatalf("failed to serialize telemetry: %v", err)
	}
	return &queue.Message{Key: []byte(point.DeviceID), Value: value}
}

func TestHandleMessage_ProcessesTelemetry(t *testing.T) {
	c, rules, events := testConsumer(t, nil)
	ctx := context.Background()

	_ = rules.Create(ctx, &domain.AlarmRule{
		ID:         "rule-1",
		Name:       "High temperature",
		DeviceID:   "dev-1",
		MetricName: "temperature",
		Operator:   domain.OperatorGT,
		Threshold:  85,
		Severity:   domain.SeverityCritical,
		Enabled:    true,
	})

	msg := telemetryMessage(t, &domain.TelemetryDataPoint{
		DeviceID:  "dev-1",
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"temperature": 92.5},
	})

	if err := c.handleMessage(ctx, msg); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}

	all, _ := events.List(ctx, domain.AlarmEventFilter{})
	if len(all) != 1 {
		t.Fatalf("got %d events, want 1", len(all))
	}
}

func TestConsumer_DrainsPublishedTelemetry(t *testing.T) {
	q := queuemem.NewQueue(16)
	c, rules, events := testConsumer(t, q)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = rules.Create(ctx, &domain.AlarmRule{
		ID:         "rule-1",
		Name:       "High temperature",
		DeviceID:   "dev-1",
		MetricName: "temperature",
		Operator:   domain.OperatorGT,
		Threshold:  85,
		Severity:   domain.SeverityCritical,
		Enabled:    true,
	})

	go func() { _ = c.Start(ctx) }()

	msg := telemetryMessage(t, &domain.TelemetryDataPoint{
		DeviceID:  "dev-1",
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"temperature": 92.5},
	})
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		all, _ := events.List(ctx, domain.AlarmEventFilter{})
		if len(all) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("published telemetry never reached the engine, got %d events", len(all))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleMessage_MalformedPayloadNotRetried(t *testing.T) {
	c, _, events := testConsumer(t, nil)
	ctx := context.Background()

	msg := &queue.Message{Value: []byte("not json")}
	if err := c.handleMessage(ctx, msg); err != nil {
		t.Fatalf("malformed payload must not be retried, got error: %v", err)
	}

	all, _ := events.List(ctx, domain.AlarmEventFilter{})
	if len(all) != 0 {
		t.Errorf("got %d events, want 0", len(all))
	}
}

func TestHandleMessage_InvalidTelemetryDropped(t *testing.T) {
	c, _, _ := testConsumer(t, nil)
	ctx := context.Background()

	// Missing device_id fails validation; the message is dropped, not retried.
	msg := &queue.Message{Value: []byte(`{"data": {"temperature": 92.5}}`)}
	if err := c.handleMessage(ctx, msg); err != nil {
		t.Fatalf("invalid telemetry must not be retried, got error: %v", err)
	}
}

func TestHandleMessage_DefaultsMissingTimestamp(t *testing.T) {
	c, rules, events := testConsumer(t, nil)
	ctx := context.Background()

	_ = rules.Create(ctx, &domain.AlarmRule{
		ID:         "rule-1",
		Name:       "High temperature",
		DeviceID:   "dev-1",
		MetricName: "temperature",
		Operator:   domain.OperatorGT,
		Threshold:  85,
		Severity:   domain.SeverityWarning,
		Enabled:    true,
	})

	msg := &queue.Message{Value: []byte(`{"device_id": "dev-1", "data": {"temperature": 90}}`)}
	if err := c.handleMessage(ctx, msg); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}

	all, _ := events.List(ctx, domain.AlarmEventFilter{})
	if len(all) != 1 {
		t.Fatalf("got %d events, want 1", len(all))
	}
}
