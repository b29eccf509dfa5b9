package main

import (
	"context"
	"errors"
	"time"

	"facturepro/internal/backend"
	"facturepro/internal/cli"
	applog "facturepro/internal/log"
	"facturepro/internal/services"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)

	logger.Info("Starting recurring-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Reminders are published to facturepro-worker when a broker is
	// configured, otherwise sent from this process.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	delivery, err := backend.NewFactory(logger.Logger).CreateDelivery(ctx, backendCfg, repo)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize reminder delivery", err)
	}
	if delivery.Cleanup != nil {
		defer delivery.Cleanup()
	}
	publisher := delivery.Publisher

	recurring := services.NewRecurringProcessor(repo)
	reminders := services.NewReminderProcessor(repo, publisher, cfg.ReminderGap(), cfg.ReminderMaxCount)

	interval := cfg.RecurringProcessorInterval
	logger.Info("Recurring invoice processor configured",
		"interval", interval,
		"reminder_gap", cfg.ReminderGap(),
		"reminder_max", cfg.ReminderMaxCount,
		"sqlite_db", cfg.SQLiteDBPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return every(gctx, interval, func(now time.Time) {
			count, err := recurring.ProcessDue(gctx, now)
			if err != nil {
				logger.Error("Recurring invoice processing failed", "error", err)
				return
			}
			logger.Info("Recurring invoice processing complete",
				"invoices_created", count,
				"next_check", now.Add(interval).Format("15:04:05"))
		})
	})
	g.Go(func() error {
		return every(gctx, interval, func(now time.Time) {
			count, err := reminders.ProcessOverdue(gctx, now)
			if err != nil {
				logger.Error("Reminder processing failed", "error", err)
				return
			}
			logger.Info("Reminder processing complete", "reminders_sent", count)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Recurring-worker stopped with error", err)
	}
	logger.Info("Recurring-worker shutdown complete")
}

// every runs fn immediately and then on each tick until ctx ends.
func every(ctx context.Context, interval time.Duration, fn func(now time.Time)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			fn(now)
		}
	}
}
