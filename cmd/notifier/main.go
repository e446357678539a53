package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coaching-notifier/internal/api"
	"coaching-notifier/internal/coaching"
	"coaching-notifier/internal/common/config"
	"coaching-notifier/internal/common/database"
	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/common/observability"
	"coaching-notifier/internal/eventbus"
	"coaching-notifier/internal/inbox"
	"coaching-notifier/internal/notify"
	"coaching-notifier/internal/preferences"
	"coaching-notifier/internal/reminder"

	"go.uber.org/zap"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()
	obs := observability.New(ctx, cfg.Observability, log)
	defer obs.Shutdown()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.PingOrClose(pingCtx)
	}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres init failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.MigrateOnStart {
		applied, err := pg.Migrate(ctx)
		if err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
		zapLog.Info("Migrations applied", zap.Strings("files", applied))
	}

	// --- Init Redis with retry ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis init failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Domain wiring ---
	bus := eventbus.New(log, eventbus.WithTracer(obs.Tracer()))
	prefs := preferences.NewStore(pg.DB, rdb.Client, cfg.Notifications.CacheTTL(), log)
	inboxSvc := inbox.NewService(inbox.NewPostgresStore(pg.DB), nil, nil)

	deps := notify.Dependencies{
		Directory:   notify.NewPostgresDirectory(pg.DB),
		Preferences: prefs,
		Logger:      log,
		AppURL:      cfg.Notifications.AppURL,
		Timeout:     config.GetDuration(cfg.Notifications.DeliveryTimeout),
	}

	handlers, err := notify.BuildHandlers(ctx, cfg, inboxSvc, deps)
	if err != nil {
		zapLog.Fatal("delivery channels failed", zap.Error(err))
	}
	subs := notify.Register(bus, handlers...)
	zapLog.Info("Delivery handlers registered", zap.Int("handlers", len(handlers)), zap.Int("subscriptions", len(subs)))

	coachingSvc := coaching.NewService(pg.DB, bus, log)

	var runner *reminder.Runner
	if cfg.Reminder.Enabled {
		job := reminder.NewJob(reminder.NewPostgresStore(pg.DB), bus, log)
		runner, err = reminder.NewRunner(job, cfg.Reminder.Schedule, cfg.Reminder.Timezone, obs, log)
		if err != nil {
			zapLog.Fatal("reminder runner invalid", zap.Error(err))
		}
		if err := runner.Start(ctx); err != nil {
			zapLog.Fatal("reminder runner failed to start", zap.Error(err))
		}
		zapLog.Info("Reminder scan scheduled",
			zap.String("schedule", cfg.Reminder.Schedule),
			zap.String("timezone", cfg.Reminder.Timezone),
			zap.Time("next", runner.Next()),
		)
	}

	if config.Watch(func(next *config.Config, err error) {
		if err != nil {
			zapLog.Warn("config reload rejected", zap.Error(err))
			return
		}
		logger.SetLevel(next.Logging.Level)
		zapLog.Info("config reloaded", zap.String("logLevel", next.Logging.Level))
	}) {
		zapLog.Info("Watching config file for changes")
	}

	server := api.NewServer(api.Dependencies{
		Inbox:       inboxSvc,
		Preferences: prefs,
		Coaching:    coachingSvc,
		Ready: func(ctx context.Context) error {
			if err := pg.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx)
		},
		Logger: log,
	})
	go func() {
		err := server.Start(cfg.Server.Address,
			config.GetDuration(cfg.Server.ReadTimeout),
			config.GetDuration(cfg.Server.WriteTimeout))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping notifier...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping http server", zap.Error(err))
	}
	if runner != nil {
		runner.Stop(shutdownCtx)
	}
	for _, sub := range subs {
		bus.Unsubscribe(sub)
	}

	zapLog.Info("Notifier stopped gracefully")
}
