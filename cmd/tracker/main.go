package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"refurb_tracker/internal/config"
	"refurb_tracker/internal/notify"
	"refurb_tracker/internal/render"
	"refurb_tracker/internal/scheduler"
	"refurb_tracker/internal/scraper"
	"refurb_tracker/internal/service"
	"refurb_tracker/internal/shorten"
	"refurb_tracker/internal/storage/memory"
	"refurb_tracker/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.Summary.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Summary.Timezone, "error", err)
		os.Exit(1)
	}

	// Stores. Without a reachable database the tracker still runs, with
	// in-memory state that does not survive a restart.
	var (
		history     service.HistoryStore
		rules       service.RuleStore
		subscribers service.SubscriberStore
		snapshots   service.SnapshotStore
		auditLog    service.NotificationLog
		state       service.StateStore
	)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Warn("database unavailable, falling back to in-memory stores", "error", err)
		mem := memory.NewStore()
		history, rules, subscribers, snapshots, auditLog, state = mem, mem, mem, mem, mem, mem
	} else {
		defer db.Close()
		logger.Info("connected to database")
		history = postgres.NewHistoryStore(db)
		rules = postgres.NewRuleStore(db)
		subscribers = postgres.NewSubscriberStore(db)
		snapshots = postgres.NewSnapshotStore(db)
		auditLog = postgres.NewNotificationStore(db)
		state = postgres.NewStateStore(db)
	}

	// Scrapers share one rendering session.
	renderer := render.NewSession(render.Config{Timeout: cfg.Tracking.FetchTimeout}, logger)

	catalog := scraper.NewManager(logger)
	if cfg.Scrapers.Apple.Enabled {
		catalog.Register(
			scraper.NewApple(scraper.AppleConfig{
				BaseURL:    cfg.Scrapers.Apple.BaseURL,
				Categories: cfg.Scrapers.Apple.Categories,
			}, renderer, logger),
			scraper.RetryPolicy{
				MaxAttempts: cfg.Scrapers.Apple.MaxRetries,
				Delay:       cfg.Scrapers.Apple.RetryDelay,
			},
		)
	}
	if cfg.Scrapers.PChome.Enabled {
		catalog.Register(
			scraper.NewPChome(scraper.PChomeConfig{
				SearchURL: cfg.Scrapers.PChome.SearchURL,
				Terms:     cfg.Scrapers.PChome.Terms,
			}, renderer, logger),
			scraper.RetryPolicy{
				MaxAttempts: cfg.Scrapers.PChome.MaxRetries,
				Delay:       cfg.Scrapers.PChome.RetryDelay,
			},
		)
	}
	defer catalog.Close()

	// Notification providers. The queue provider is optional: losing the
	// broker must not take the tracker down.
	notifier := notify.NewManager(logger)
	rabbitMQ, err := notify.NewRabbitMQ(notify.RabbitMQConfig{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, queue provider disabled", "error", err)
	} else {
		notifier.Register(rabbitMQ)
	}
	if cfg.Push.Endpoint != "" {
		notifier.Register(notify.NewPush(notify.PushConfig{
			Endpoint: cfg.Push.Endpoint,
			Token:    cfg.Push.Token,
		}, logger))
	}
	defer notifier.Close()

	shortener := shorten.NewISGd(cfg.Shortener.Endpoint, logger)
	messenger := notify.NewBatcher(cfg.Tracking.BatchSize, cfg.Tracking.BatchDelay, shortener, notifier, logger)

	summary := service.NewSummary(
		catalog,
		snapshots,
		subscribers,
		auditLog,
		notifier,
		cfg.Summary.RetentionDays,
		loc,
		logger,
	)

	tracker := service.NewTracker(
		catalog,
		history,
		rules,
		subscribers,
		auditLog,
		state,
		messenger,
		notifier,
		summary,
		loc,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tracker.Resume(ctx); err != nil {
		logger.Warn("failed to restore tracking state", "error", err)
	}
	if cfg.Tracking.StartOnBoot && !tracker.IsTracking() {
		if err := tracker.StartTracking(ctx); err != nil {
			logger.Error("failed to start tracking", "error", err)
			os.Exit(1)
		}
	}

	sched := scheduler.NewScheduler(tracker, summary, cfg.Tracking.Interval, cfg.Summary.PollInterval, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	stats := catalog.Stats()
	logger.Info("starting refurb tracker",
		"sources", stats.Available,
		"tracking", tracker.IsTracking(),
		"cycle_interval", cfg.Tracking.Interval,
		"summary_poll", cfg.Summary.PollInterval,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
