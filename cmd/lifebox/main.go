// Package main is the entry point for the Lifebox alarm engine. It wires the
// telemetry sources, the rule evaluation engine, and the HTTP API, then runs
// until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"code.cloudfoundry.org/clock"

	"lifebox-go/internal/api"
	"lifebox-go/internal/banner"
	"lifebox-go/internal/command"
	"lifebox-go/internal/config"
	"lifebox-go/internal/dispatch"
	"lifebox-go/internal/engine"
	"lifebox-go/internal/ingest"
	"lifebox-go/internal/notify"
	"lifebox-go/internal/queue"
	kafkaqueue "lifebox-go/internal/queue/kafka"
	memoryqueue "lifebox-go/internal/queue/memory"
	"lifebox-go/internal/store"
	memorystor "lifebox-go/internal/store/memory"
	postgresstor "lifebox-go/internal/store/postgres"
	redisstor "lifebox-go/internal/store/redis"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	banner.Print()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(&cfg.Logger)

	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
	)

	// Initialize dependencies based on storage mode
	deps, cleanup, err := initDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start telemetry consumer in background
	go func() {
		if err := deps.consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("telemetry consumer error", "error", err)
			cancel()
		}
	}()

	// Start optional MQTT source
	if deps.mqttSource != nil {
		if err := deps.mqttSource.Start(ctx); err != nil {
			logger.Error("failed to start mqtt source", "error", err)
			os.Exit(1)
		}
	}

	// Start debounce janitor in background
	go deps.janitor.Start(ctx)

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("lifebox alarm engine started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	deps.janitor.Stop()

	if deps.mqttSource != nil {
		deps.mqttSource.Stop()
	}

	if err := deps.consumer.Stop(); err != nil {
		logger.Error("telemetry consumer shutdown error", "error", err)
	}

	logger.Info("lifebox alarm engine stopped")
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server     *api.Server
	consumer   *ingest.Consumer
	mqttSource *ingest.MQTTSource
	janitor    *engine.Janitor
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		ruleRepo      store.AlarmRuleRepository
		eventRepo     store.AlarmEventRepository
		deviceDir     store.DeviceDirectory
		debounceStore store.DebounceStore
		telemetry     queue.Consumer
		telemetryPub  queue.Producer
		smsSender     notify.SmsSender
		enqueuer      command.Enqueuer
		cleanupFuncs  []func()
	)

	ctx := context.Background()

	if cfg.Storage.UseMemory() {
		// Initialize in-memory implementations
		logger.Info("initializing in-memory storage")

		ruleRepo = memorystor.NewAlarmRuleRepository()
		eventRepo = memorystor.NewAlarmEventRepository()
		deviceDir = memorystor.NewDeviceDirectory()

		memDebounce := memorystor.NewDebounceStore()
		debounceStore = memDebounce
		cleanupFuncs = append(cleanupFuncs, func() { _ = memDebounce.Close() })

		// One channel queue serves both ends: the ingest endpoint publishes
		// to it and the telemetry consumer drains it.
		telemetryQueue := memoryqueue.NewQueue(10000)
		telemetry = telemetryQueue
		telemetryPub = telemetryQueue
		cleanupFuncs = append(cleanupFuncs, func() { _ = telemetryQueue.Close() })

		// Device commands have no downstream consumer in memory mode, so
		// enqueues are logged instead of queued.
		enqueuer = command.NewLogEnqueuer(logger)

		smsSender = notify.NewLogSmsSender(logger)
	} else {
		// Initialize real storage implementations
		logger.Info("initializing production storage (Kafka, Redis, PostgreSQL)")

		// Initialize PostgreSQL
		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		// Run migrations
		if err := db.RunMigrations(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations completed")

		ruleRepo = postgresstor.NewAlarmRuleRepository(db)
		eventRepo = postgresstor.NewAlarmEventRepository(db)
		deviceDir = postgresstor.NewDeviceDirectory(db)

		// Initialize Redis
		redisDebounce, err := redisstor.NewDebounceStore(&cfg.Redis, cfg.Engine.DebounceSweepAge)
		if err != nil {
			return nil, nil, err
		}
		debounceStore = redisDebounce
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisDebounce.Close() })

		// Initialize Kafka
		kafkaConsumer := kafkaqueue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TelemetryTopic, cfg.Kafka.ConsumerGroup, logger)
		telemetry = kafkaConsumer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaConsumer.Close() })

		telemetryProducer := kafkaqueue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TelemetryTopic)
		telemetryPub = telemetryProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = telemetryProducer.Close() })

		commandProducer := kafkaqueue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CommandTopic)
		cleanupFuncs = append(cleanupFuncs, func() { _ = commandProducer.Close() })
		enqueuer = command.NewQueueEnqueuer(commandProducer, logger)

		// Initialize SMS channel
		if cfg.SNS.Enabled {
			snsSender, err := notify.NewSNSSmsSender(ctx, cfg.SNS.Region, logger)
			if err != nil {
				return nil, nil, err
			}
			smsSender = snsSender
		} else {
			smsSender = notify.NewLogSmsSender(logger)
		}
	}

	emailSender := notify.NewLogEmailSender(logger)

	// Initialize dispatcher and engine
	dispatcher := dispatch.New(smsSender, emailSender, enqueuer, eventRepo, logger)

	eng := engine.New(engine.Deps{
		Rules:      ruleRepo,
		Events:     eventRepo,
		Devices:    deviceDir,
		Debounce:   debounceStore,
		Dispatcher: dispatcher,
		Clock:      clock.NewClock(),
		Logger:     logger,
		Config:     cfg.Engine,
	})

	janitor := engine.NewJanitor(eng, cfg.Engine.SweepInterval, clock.NewClock(), logger)

	// Initialize telemetry sources
	consumer := ingest.NewConsumer(telemetry, eng, logger)

	var mqttSource *ingest.MQTTSource
	if cfg.MQTT.Enabled {
		mqttSource = ingest.NewMQTTSource(&cfg.MQTT, eng, logger)
	}

	// Initialize API handlers
	alarmHandler := api.NewAlarmHandler(eng, telemetryPub, logger)
	ruleHandler := api.NewRuleHandler(ruleRepo, logger)
	eventHandler := api.NewEventHandler(eventRepo, logger)

	// Initialize HTTP server
	server := api.NewServer(api.ServerDeps{
		Config:       &cfg.Server,
		Logger:       logger,
		AlarmHandler: alarmHandler,
		RuleHandler:  ruleHandler,
		EventHandler: eventHandler,
	})

	// Build cleanup function
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	return &dependencies{
		server:     server,
		consumer:   consumer,
		mqttSource: mqttSource,
		janitor:    janitor,
	}, cleanup, nil
}

// initLogger creates and configures the application logger.
func initLogger(cfg *config.LoggerConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
