package main

import (
	"context"
	"errors"

	"facturepro/internal/amqp"
	"facturepro/internal/backend"
	"facturepro/internal/cli"
	applog "facturepro/internal/log"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)

	logger.Info("Starting facturepro-worker")
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Configuration validation failed", errors.New("AMQP_URL is required for the delivery worker"))
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	deliveryWorker, syncProcessor, err := backend.NewFactory(logger.Logger).CreateWorker(ctx, backendCfg, repo)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize delivery worker", err)
	}

	amqpClient, err := amqp.NewClientWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 10)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	// Export anything missed while the worker was down
	logger.Info("Performing startup ledger sync check...")
	if err := deliveryWorker.ProcessPendingLedger(ctx); err != nil {
		logger.Error("Failed startup ledger sync check", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeWithRetry(gctx, deliveryWorker.Handlers())
	})
	if syncProcessor.Enabled() {
		g.Go(func() error {
			return syncProcessor.Run(gctx)
		})
	} else {
		logger.Info("Skipping periodic ledger sync, no ledger configured")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Worker stopped with error", err)
	}
	logger.Info("Worker shutdown complete")
}
