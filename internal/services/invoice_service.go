package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"facturepro/internal/amqp"
	"facturepro/internal/core"
	"facturepro/internal/log"
	"facturepro/internal/storage"
)

var (
	ErrDeliveryUnavailable = errors.New("e-mail delivery is not configured")
	ErrInvalidPDF          = errors.New("invalid PDF attachment")
	ErrInvoiceCancelled    = errors.New("invoice is cancelled")
)

// Publisher queues delivery jobs. *amqp.Client publishes to the broker; the
// worker package provides a direct dispatcher for deployments without one.
type Publisher interface {
	PublishInvoiceEmail(ctx context.Context, msg *amqp.InvoiceEmailMessage) error
	PublishLedgerSync(ctx context.Context, invoiceID string) error
}

// FinalizeRequest is a builder document saved as a new invoice.
type FinalizeRequest struct {
	Data              core.InvoiceData
	RemindersEnabled  bool
	RecurringInterval core.RecurringInterval
	SendEmail         bool
	PDFBase64         string
}

// InvoiceService orchestrates invoice operations across SQLite and AMQP
type InvoiceService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
}

// NewInvoiceService wires the service. publisher may be nil, in which case
// ledger jobs are left to the pending sweep and e-mails cannot be sent.
func NewInvoiceService(storage *storage.SQLiteRepository, publisher Publisher) *InvoiceService {
	return &InvoiceService{
		storage:   storage,
		publisher: publisher,
	}
}

// Preview computes the live totals of the builder lines.
func (s *InvoiceService) Preview(lines []core.LineItem) core.InvoiceTotals {
	return core.ComputeTotals(lines)
}

// Finalize validates the document, snapshots it with its totals and queues
// the ledger export, plus the e-mail when requested.
func (s *InvoiceService) Finalize(ctx context.Context, profileID string, req FinalizeRequest) (core.Invoice, error) {
	profile, err := s.storage.GetProfile(ctx, profileID)
	if err != nil {
		return core.Invoice{}, err
	}

	data := req.Data
	if strings.TrimSpace(data.Seller.CompanyName) == "" {
		data.Seller = profile.Seller()
	}
	if err := data.Validate(); err != nil {
		return core.Invoice{}, err
	}
	if req.SendEmail && strings.TrimSpace(data.Client.Email) == "" {
		return core.Invoice{}, core.ErrMissingClientEmail
	}
	if req.SendEmail {
		if err := checkPDF(req.PDFBase64); err != nil {
			return core.Invoice{}, err
		}
	}

	interval := req.RecurringInterval
	if interval == "" {
		interval = core.IntervalNone
	}
	issue, err := core.ParseDate(data.Details.IssueDate)
	if err != nil {
		return core.Invoice{}, err
	}
	next, err := FirstGenerationDate(issue, interval)
	if err != nil {
		return core.Invoice{}, err
	}

	inv := core.Invoice{
		ProfileID:          profileID,
		Number:             strings.TrimSpace(data.Details.InvoiceNumber),
		ClientName:         strings.TrimSpace(data.Client.CompanyName),
		IssueDate:          issue,
		Data:               data,
		Totals:             core.RoundTotals(core.ComputeTotals(data.Lines)),
		Status:             core.StatusPending,
		RemindersEnabled:   req.RemindersEnabled,
		RecurringInterval:  interval,
		NextGenerationDate: next,
		LedgerSync:         core.LedgerPending,
	}

	created, err := s.storage.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogInvoiceFinalized(ctx, profileID, created.ID, created.Number, created.Totals.GrandTotal)

	// The pending sweep retries the export when publishing fails
	if err := s.publishLedgerSync(ctx, created.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger sync message",
			"invoice_id", created.ID, "error", err)
	}

	if req.SendEmail {
		if err := s.publishEmail(ctx, created, amqp.EmailInvoice, req.PDFBase64, ""); err != nil {
			slog.ErrorContext(ctx, "Failed to queue invoice e-mail",
				"invoice_id", created.ID, "error", err)
		}
	}

	return created, nil
}

// Send queues the e-mail of an existing invoice with its rendered PDF.
func (s *InvoiceService) Send(ctx context.Context, invoiceID, pdfBase64, replyTo string) error {
	inv, err := s.storage.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status == core.StatusCancelled {
		return ErrInvoiceCancelled
	}
	if strings.TrimSpace(inv.Data.Client.Email) == "" {
		return core.ErrMissingClientEmail
	}
	if err := checkPDF(pdfBase64); err != nil {
		return err
	}
	if s.publisher == nil {
		return ErrDeliveryUnavailable
	}
	return s.publishEmail(ctx, inv, amqp.EmailInvoice, pdfBase64, replyTo)
}

func (s *InvoiceService) Get(ctx context.Context, id string) (core.Invoice, error) {
	return s.storage.GetInvoice(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, profileID string) ([]core.Invoice, error) {
	return s.storage.ListInvoices(ctx, profileID)
}

// Summary aggregates the dashboard figures of a profile.
func (s *InvoiceService) Summary(ctx context.Context, profileID string) (core.DashboardSummary, error) {
	invoices, err := s.storage.ListInvoices(ctx, profileID)
	if err != nil {
		return core.DashboardSummary{}, err
	}
	return core.Summarize(invoices), nil
}

// MarkPaid records the payment of a pending or overdue invoice.
func (s *InvoiceService) MarkPaid(ctx context.Context, id string) (core.Invoice, error) {
	return s.transition(ctx, id, core.StatusPaid)
}

// Cancel voids a pending invoice.
func (s *InvoiceService) Cancel(ctx context.Context, id string) (core.Invoice, error) {
	return s.transition(ctx, id, core.StatusCancelled)
}

func (s *InvoiceService) transition(ctx context.Context, id string, next core.Status) (core.Invoice, error) {
	inv, err := s.storage.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}
	if !inv.Status.CanTransition(next) {
		return core.Invoice{}, fmt.Errorf("%w: %s to %s", core.ErrInvalidStatusChange, inv.Status, next)
	}
	if err := s.storage.UpdateInvoiceStatus(ctx, id, inv.Status, next); err != nil {
		return core.Invoice{}, err
	}

	slog.InfoContext(ctx, "Invoice status changed",
		"invoice_id", id,
		"invoice_number", inv.Number,
		"from", inv.Status,
		"to", next)

	inv.Status = next
	return inv, nil
}

func (s *InvoiceService) publishLedgerSync(ctx context.Context, id string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, leaving ledger sync to the sweep", "invoice_id", id)
		return nil
	}
	return s.publisher.PublishLedgerSync(ctx, id)
}

func (s *InvoiceService) publishEmail(ctx context.Context, inv core.Invoice, kind, pdfBase64, replyTo string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping e-mail", "invoice_id", inv.ID, "kind", kind)
		return nil
	}
	msg := amqp.NewInvoiceEmailMessage(inv.ID, kind)
	msg.PDFBase64 = pdfBase64
	msg.ReplyTo = replyTo
	if msg.ReplyTo == "" {
		msg.ReplyTo = inv.Data.Seller.Email
	}
	return s.publisher.PublishInvoiceEmail(ctx, msg)
}

func checkPDF(pdfBase64 string) error {
	if strings.TrimSpace(pdfBase64) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPDF)
	}
	if _, err := base64.StdEncoding.DecodeString(pdfBase64); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return nil
}

// Close closes storage and the publisher when it holds a connection
func (s *InvoiceService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	return errors.Join(errs...)
}
