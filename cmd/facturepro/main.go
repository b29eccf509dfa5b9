package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"facturepro/internal/backend"
	"facturepro/internal/cli"
	apphttp "facturepro/internal/http"
	applog "facturepro/internal/log"
	"facturepro/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	delivery, err := backend.NewFactory(logger.Logger).CreateDelivery(ctx, backendCfg, repo)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize invoice delivery", err)
	}

	// Close releases storage and the AMQP connection when there is one
	invoices := services.NewInvoiceService(repo, delivery.Publisher)
	defer invoices.Close()

	srv := apphttp.NewServer(":"+cfg.Port, repo, invoices, apphttp.Options{
		Logger: logger.WithComponent(applog.ComponentHTTP),
	})

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting facturepro server",
		"port", cfg.Port,
		"brand", cfg.Brand,
		"language", cfg.Language(),
		"ledger", cfg.LedgerBackend,
		"in_process_delivery", delivery.Worker != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	logger.Info("Server stopped gracefully")
}
