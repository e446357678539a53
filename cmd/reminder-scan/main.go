// Command reminder-scan runs a single reminder scan and exits non-zero when
// the bulk query fails. It is meant for an external scheduler when the
// notifier's in-process cron is disabled; deliveries run in this process.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

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

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reminder scan failed:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	obs := observability.New(ctx, cfg.Observability, log)
	defer obs.Shutdown()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	if err := pg.PingOrClose(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()

	rdb := database.NewRedis(cfg.Database.Redis)
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		// Preferences fall back to postgres when the cache is down.
		zapLog.Warn("redis unavailable, continuing without preference cache", zap.Error(err))
	}

	bus := eventbus.New(log, eventbus.WithTracer(obs.Tracer()))
	deps := notify.Dependencies{
		Directory:   notify.NewPostgresDirectory(pg.DB),
		Preferences: preferences.NewStore(pg.DB, rdb.Client, cfg.Notifications.CacheTTL(), log),
		Logger:      log,
		AppURL:      cfg.Notifications.AppURL,
		Timeout:     config.GetDuration(cfg.Notifications.DeliveryTimeout),
	}
	svc := inbox.NewService(inbox.NewPostgresStore(pg.DB), nil, nil)
	handlers, err := notify.BuildHandlers(ctx, cfg, svc, deps)
	if err != nil {
		return err
	}
	notify.Register(bus, handlers...)

	job := reminder.NewJob(reminder.NewPostgresStore(pg.DB), bus, log)
	runner, err := reminder.NewRunner(job, cfg.Reminder.Schedule, cfg.Reminder.Timezone, obs, log)
	if err != nil {
		return err
	}
	return runner.RunOnce(ctx)
}
