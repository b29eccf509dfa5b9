package backend

import (
	"context"
	"fmt"
	"log/slog"

	"facturepro/internal/amqp"
	"facturepro/internal/ledger"
	"facturepro/internal/ledger/google"
	"facturepro/internal/ledger/memory"
	"facturepro/internal/mail"
	"facturepro/internal/services"
	"facturepro/internal/storage"
	"facturepro/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateLedger returns the configured ledger, or nil when export is disabled.
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (ledger.Writer, error) {
	switch config.Ledger {
	case MemoryLedger:
		f.logger.Info("Initialized memory ledger")
		return memory.New(), nil
	case SheetsLedger:
		client, err := google.New(ctx, google.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets ledger: %w", err)
		}
		return client, nil
	case NoLedger, "":
		f.logger.Info("Ledger export disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", config.Ledger)
	}
}

// CreateSender uses Resend when an API key is configured. Without one, mail
// is recorded in memory and never leaves the process.
func (f *DefaultFactory) CreateSender(config Config) mail.Sender {
	if config.ResendAPIKey != "" {
		return mail.NewResendSender(config.ResendAPIKey)
	}
	f.logger.Warn("RESEND_API_KEY not set, e-mails are recorded but not delivered")
	return mail.NewRecorder()
}

// CreateWorker wires a DeliveryWorker and the ledger sync processor it uses.
func (f *DefaultFactory) CreateWorker(ctx context.Context, config Config, repo *storage.SQLiteRepository) (*worker.DeliveryWorker, *services.SyncProcessor, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	writer, err := f.CreateLedger(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	syncProcessor := services.NewSyncProcessor(repo, writer, services.SyncProcessorConfig{
		PollInterval: config.SyncInterval,
		BatchSize:    config.SyncBatchSize,
	})
	composer := mail.NewComposer(mail.BrandFor(config.Brand), config.MailFromAddress, config.MailReplyTo)

	return worker.NewDeliveryWorker(repo, composer, f.CreateSender(config), syncProcessor), syncProcessor, nil
}

// CreateDelivery queues deliveries on AMQP when a broker is configured and
// otherwise delivers them in-process.
func (f *DefaultFactory) CreateDelivery(ctx context.Context, config Config, repo *storage.SQLiteRepository) (*DeliveryResult, error) {
	if config.AMQPURL != "" {
		attempts := config.AMQPAttempts
		if attempts <= 0 {
			attempts = 1
		}
		client, err := amqp.NewClientWithRetry(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, attempts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Initialized AMQP delivery",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return &DeliveryResult{
			Publisher: client,
			Cleanup:   client.Close,
		}, nil
	}

	w, _, err := f.CreateWorker(ctx, config, repo)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Initialized in-process delivery", "ledger", config.Ledger)
	return &DeliveryResult{
		Publisher: worker.NewDirect(w),
		Worker:    w,
	}, nil
}
