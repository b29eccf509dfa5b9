package backend

import (
	"context"

	"facturepro/internal/ledger"
	"facturepro/internal/mail"
	"facturepro/internal/services"
	"facturepro/internal/storage"
	"facturepro/internal/worker"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// DeliveryResult is the publisher the invoice service hands deliveries to.
// Worker is set only when deliveries run in-process.
type DeliveryResult struct {
	Publisher services.Publisher
	Worker    *worker.DeliveryWorker
	Cleanup   CleanupFunc
}

// Factory creates the delivery side of the application from configuration.
type Factory interface {
	CreateLedger(ctx context.Context, config Config) (ledger.Writer, error)
	CreateSender(config Config) mail.Sender
	CreateWorker(ctx context.Context, config Config, repo *storage.SQLiteRepository) (*worker.DeliveryWorker, *services.SyncProcessor, error)
	CreateDelivery(ctx context.Context, config Config, repo *storage.SQLiteRepository) (*DeliveryResult, error)
}
