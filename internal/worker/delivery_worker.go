package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"facturepro/internal/amqp"
	applog "facturepro/internal/log"
	"facturepro/internal/mail"
	"facturepro/internal/services"
	"facturepro/internal/storage"
)

// DeliveryWorker sends invoice e-mails and exports invoices to the ledger.
type DeliveryWorker struct {
	storage  *storage.SQLiteRepository
	composer *mail.Composer
	sender   mail.Sender
	ledger   *services.SyncProcessor
}

func NewDeliveryWorker(storage *storage.SQLiteRepository, composer *mail.Composer, sender mail.Sender, ledger *services.SyncProcessor) *DeliveryWorker {
	return &DeliveryWorker{
		storage:  storage,
		composer: composer,
		sender:   sender,
		ledger:   ledger,
	}
}

// Handlers routes queue messages to the worker.
func (w *DeliveryWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		InvoiceEmail: w.HandleEmail,
		LedgerSync:   w.HandleLedger,
	}
}

// HandleEmail renders and sends an invoice or reminder e-mail. Messages that
// can never succeed are logged and dropped; delivery failures are returned
// so the message is retried.
func (w *DeliveryWorker) HandleEmail(ctx context.Context, msg *amqp.InvoiceEmailMessage) error {
	slog.InfoContext(ctx, "Processing e-mail message",
		"invoice_id", msg.InvoiceID,
		"kind", msg.Kind)

	inv, err := w.storage.GetInvoice(ctx, msg.InvoiceID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping e-mail for unknown invoice", "invoice_id", msg.InvoiceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get invoice from storage: %w", err)
	}

	if msg.To != "" {
		inv.Data.Client.Email = msg.To
	}
	if strings.TrimSpace(inv.Data.Client.Email) == "" {
		slog.WarnContext(ctx, "Dropping e-mail without recipient", "invoice_id", inv.ID)
		return nil
	}

	var out mail.Message
	switch msg.Kind {
	case amqp.EmailReminder:
		if !inv.Status.Open() {
			slog.InfoContext(ctx, "Skipping reminder for settled invoice",
				"invoice_id", inv.ID,
				"status", inv.Status)
			return nil
		}
		out, err = w.composer.ReminderEmail(inv, msg.ReplyTo)
	default:
		pdf, decodeErr := base64.StdEncoding.DecodeString(msg.PDFBase64)
		if decodeErr != nil {
			slog.ErrorContext(ctx, "Dropping e-mail with invalid PDF", "invoice_id", inv.ID, "error", decodeErr)
			return nil
		}
		out, err = w.composer.InvoiceEmail(inv, pdf, msg.ReplyTo)
	}
	if err != nil {
		return err
	}

	id, err := w.sender.Send(ctx, out)
	if err != nil {
		return fmt.Errorf("send %s e-mail: %w", msg.Kind, err)
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogEmailSent(ctx, inv.ID, inv.Number, msg.Kind, out.To, id)
	return nil
}

// HandleLedger exports the invoice of a ledger message.
func (w *DeliveryWorker) HandleLedger(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	err := w.ledger.SyncInvoice(ctx, msg.InvoiceID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping ledger sync for unknown invoice", "invoice_id", msg.InvoiceID)
		return nil
	}
	return err
}

// ProcessPendingLedger exports invoices whose ledger sync is still pending
// or failed. This is a backup mechanism in case AMQP messages are lost.
func (w *DeliveryWorker) ProcessPendingLedger(ctx context.Context) error {
	if !w.ledger.Enabled() {
		return nil
	}
	synced, err := w.ledger.ProcessBatch(ctx)
	if err != nil {
		return fmt.Errorf("process pending ledger sync: %w", err)
	}
	if synced > 0 {
		slog.InfoContext(ctx, "Pending ledger sync processed", "synced", synced)
	}
	return nil
}

// Direct runs delivery jobs in-process for deployments without a broker.
// It satisfies services.Publisher.
type Direct struct {
	worker *DeliveryWorker
}

var _ services.Publisher = (*Direct)(nil)

func NewDirect(worker *DeliveryWorker) *Direct {
	return &Direct{worker: worker}
}

func (d *Direct) PublishInvoiceEmail(ctx context.Context, msg *amqp.InvoiceEmailMessage) error {
	return d.worker.HandleEmail(ctx, msg)
}

func (d *Direct) PublishLedgerSync(ctx context.Context, invoiceID string) error {
	return d.worker.HandleLedger(ctx, amqp.NewLedgerSyncMessage(invoiceID))
}

