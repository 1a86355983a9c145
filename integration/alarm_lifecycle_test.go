package integration

import (
	"context"
	"log/slog"
	"os"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifebox-go/internal/command"
	"lifebox-go/internal/config"
	"lifebox-go/internal/dispatch"
	"lifebox-go/internal/domain"
	"lifebox-go/internal/engine"
	"lifebox-go/internal/notify"
	memorystore "lifebox-go/internal/store/memory"
)

var _ = Describe("Alarm Lifecycle Integration", func() {
	var (
		eng      *engine.Engine
		rules    *memorystore.AlarmRuleRepository
		events   *memorystore.AlarmEventRepository
		devices  *memorystore.DeviceDirectory
		debounce *memorystore.DebounceStore
		clk      *fakeclock.FakeClock
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		rules = memorystore.NewAlarmRuleRepository()
		events = memorystore.NewAlarmEventRepository()
		devices = memorystore.NewDeviceDirectory()
		debounce = memorystore.NewDebounceStore()
		clk = fakeclock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

		devices.PutClient(&domain.Client{
			ID:           "client-1",
			Name:         "Acme Farms",
			PrimaryEmail: "ops@acme.example",
			PhoneNumbers: []string{"+15550001"},
		})
		devices.PutDevice(&domain.Device{ID: "dev-1", Name: "Inverter A", ClientID: "client-1"})

		dispatcher := dispatch.New(
			notify.NewLogSmsSender(logger),
			notify.NewLogEmailSender(logger),
			command.NewLogEnqueuer(logger),
			events,
			logger,
		)

		eng = engine.New(engine.Deps{
			Rules:      rules,
			Events:     events,
			Devices:    devices,
			Debounce:   debounce,
			Dispatcher: dispatcher,
			Clock:      clk,
			Logger:     logger,
			Config: config.EngineConfig{
				SuppressionWindow: 5 * time.Minute,
				DebounceSweepAge:  10 * time.Minute,
				SweepInterval:     time.Minute,
			},
		})
	})

	telemetry := func(deviceID string, value float64) *domain.TelemetryDataPoint {
		return &domain.TelemetryDataPoint{
			DeviceID:  deviceID,
			Timestamp: clk.Now(),
			Data:      map[string]any{"temperature": value},
		}
	}

	Context("When a simple threshold rule is configured", func() {
		BeforeEach(func() {
			err := rules.Create(ctx, &domain.AlarmRule{
				ID:         "high-temp",
				Name:       "High temperature",
				DeviceID:   "dev-1",
				MetricName: "temperature",
				Operator:   domain.OperatorGT,
				Threshold:  85,
				Severity:   domain.SeverityCritical,
				Enabled:    true,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("records an open alarm event when the threshold is breached", func() {
			results, err := eng.ProcessTelemetry(ctx, telemetry("dev-1", 80))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())

			results, err = eng.ProcessTelemetry(ctx, telemetry("dev-1", 92.5))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].RuleID).To(Equal("high-temp"))

			event, err := events.GetByID(ctx, results[0].EventID)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.IsOpen()).To(BeTrue())
			Expect(event.Severity).To(Equal(domain.SeverityCritical))
			Expect(event.TriggeredValue).To(Equal(92.5))
		})

		It("suppresses duplicates while the event stays open and fires again after resolve", func() {
			results, err := eng.ProcessTelemetry(ctx, telemetry("dev-1", 92))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			eventID := results[0].EventID

			// Repeated breaches inside the window stay silent.
			results, err = eng.ProcessTelemetry(ctx, telemetry("dev-1", 95))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())

			all, err := events.List(ctx, domain.AlarmEventFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))

			// An operator resolves the event; the next breach fires a new one.
			event, err := events.GetByID(ctx, eventID)
			Expect(err).NotTo(HaveOccurred())
			event.Resolve(clk.Now())
			Expect(events.Update(ctx, event)).To(Succeed())

			results, err = eng.ProcessTelemetry(ctx, telemetry("dev-1", 96))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].EventID).NotTo(Equal(eventID))
		})

		It("fires again once the suppression window has passed", func() {
			results, err := eng.ProcessTelemetry(ctx, telemetry("dev-1", 92))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			clk.Increment(6 * time.Minute)

			results, err = eng.ProcessTelemetry(ctx, telemetry("dev-1", 93))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			all, err := events.List(ctx, domain.AlarmEventFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})
	})

	Context("When a rule requires the condition to hold", func() {
		BeforeEach(func() {
			err := rules.Create(ctx, &domain.AlarmRule{
				ID:                       "sustained-temp",
				Name:                     "Sustained high temperature",
				DeviceID:                 "dev-1",
				MetricName:               "temperature",
				Operator:                 domain.OperatorGT,
				Threshold:                85,
				ThresholdDurationSeconds: 60,
				Severity:                 domain.SeverityWarning,
				Enabled:                  true,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("only fires after the hold time has elapsed", func() {
			results, err := eng.ProcessTelemetry(ctx, telemetry("dev-1", 92))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty(), "first breach arms the debounce")

			clk.Increment(61 * time.Second)

			results, err = eng.ProcessTelemetry(ctx, telemetry("dev-1", 93))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1), "breach after the hold time fires")

			entry, err := debounce.Get(ctx, "sustained-temp", "dev-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).To(BeNil(), "trigger clears the debounce entry")
		})

		It("sweeps abandoned debounce entries after the device goes silent", func() {
			_, err := eng.ProcessTelemetry(ctx, telemetry("dev-1", 92))
			Expect(err).NotTo(HaveOccurred())

			clk.Increment(11 * time.Minute)
			Expect(eng.CleanupDebounceCache(ctx)).To(Succeed())

			entry, err := debounce.Get(ctx, "sustained-temp", "dev-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).To(BeNil())
		})
	})

	Context("When a rule carries a command reaction", func() {
		BeforeEach(func() {
			err := rules.Create(ctx, &domain.AlarmRule{
				ID:         "overheat-shutdown",
				Name:       "Overheat restart",
				DeviceID:   "dev-1",
				MetricName: "temperature",
				Operator:   domain.OperatorGT,
				Threshold:  95,
				Severity:   domain.SeverityEmergency,
				Enabled:    true,
				Reactions: []domain.AlarmReaction{
					{
						ID:      "re-1",
						RuleID:  "overheat-shutdown",
						Type:    domain.ReactionCommand,
						Enabled: true,
						Config:  domain.ReactionConfig{"commandType": "restart"},
					},
				},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("enqueues the command and appends the status to the event message", func() {
			results, err := eng.ProcessTelemetry(ctx, telemetry("dev-1", 99))
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			event, err := events.GetByID(ctx, results[0].EventID)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.Message).To(ContainSubstring(" | Command sent: restart"))
		})
	})

	Context("When telemetry uses metric aliases", func() {
		BeforeEach(func() {
			err := rules.Create(ctx, &domain.AlarmRule{
				ID:         "alias-temp",
				Name:       "Alias temperature",
				DeviceID:   "dev-1",
				MetricName: "temperature",
				Operator:   domain.OperatorGT,
				Threshold:  85,
				Severity:   domain.SeverityWarning,
				Enabled:    true,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("resolves the metric through its alias when the direct key is absent", func() {
			point := &domain.TelemetryDataPoint{
				DeviceID:  "dev-1",
				Timestamp: clk.Now(),
				Data:      map[string]any{"inverterTemperatureValue": 91.0},
			}

			results, err := eng.ProcessTelemetry(ctx, point)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].TriggeredValue).To(Equal(91.0))
		})
	})
})
