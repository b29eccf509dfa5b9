package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"facturepro/internal/core"
	"facturepro/internal/storage"
)

// defaultPaymentTermDays applies when the parent invoice has no usable due date.
const defaultPaymentTermDays = 30

// RecurringProcessor generates the next invoice of every recurring invoice
// whose generation date has come.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
}

func NewRecurringProcessor(storage *storage.SQLiteRepository) *RecurringProcessor {
	return &RecurringProcessor{storage: storage}
}

// ProcessDue generates the invoices due on or before now and returns how
// many were created. A failing invoice is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.DateOf(now)
	due, err := p.storage.DueRecurringInvoices(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to get due recurring invoices: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring invoices",
		"total_due", len(due),
		"processing_date", today.String())

	processedCount := 0
	for _, parent := range due {
		child, err := NextRecurringInvoice(parent)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to build recurring invoice",
				"parent_id", parent.ID,
				"interval", parent.RecurringInterval,
				"error", err)
			continue
		}

		created, err := p.storage.CreateRecurringChild(ctx, parent.ID, child)
		if errors.Is(err, storage.ErrAlreadyGenerated) {
			slog.InfoContext(ctx, "Recurring invoice already generated",
				"parent_id", parent.ID,
				"issue_date", child.IssueDate.String())
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create recurring invoice",
				"parent_id", parent.ID,
				"invoice_number", child.Number,
				"error", err)
			continue
		}

		processedCount++
		slog.InfoContext(ctx, "Created invoice from recurring schedule",
			"parent_id", parent.ID,
			"invoice_id", created.ID,
			"invoice_number", created.Number,
			"issue_date", created.IssueDate.String(),
			"next_generation_date", created.NextGenerationDate.String())
	}

	slog.InfoContext(ctx, "Recurring invoice processing complete",
		"processed", processedCount,
		"total_checked", len(due))

	return processedCount, nil
}

// NextRecurringInvoice builds the successor of a recurring invoice. It is
// issued on the parent's generation date with the parent's payment term,
// the next number and the schedule advanced by one period.
func NextRecurringInvoice(parent core.Invoice) (core.Invoice, error) {
	strategy, err := GetScheduleStrategy(parent.RecurringInterval)
	if err != nil {
		return core.Invoice{}, err
	}
	if parent.NextGenerationDate.IsEmpty() {
		return core.Invoice{}, fmt.Errorf("invoice %s has no generation date: %w", parent.ID, core.ErrInvalidDate)
	}

	issue := parent.NextGenerationDate
	due := issue.AddDays(paymentTermDays(parent))
	number := core.NextInvoiceNumber(parent.Number)

	data := parent.Data
	data.Lines = append([]core.LineItem(nil), parent.Data.Lines...)
	data.Details = core.InvoiceDetails{
		InvoiceNumber: number,
		IssueDate:     issue.String(),
		DueDate:       due.String(),
	}

	return core.Invoice{
		ID:                 core.NewID(),
		ProfileID:          parent.ProfileID,
		Number:             number,
		ClientName:         parent.ClientName,
		IssueDate:          issue,
		Data:               data,
		Totals:             parent.Totals,
		Status:             core.StatusPending,
		RemindersEnabled:   parent.RemindersEnabled,
		RecurringInterval:  parent.RecurringInterval,
		NextGenerationDate: strategy.Next(issue),
		LedgerSync:         core.LedgerPending,
	}, nil
}

func paymentTermDays(inv core.Invoice) int {
	issue := inv.IssueDate
	if d, err := core.ParseDate(inv.Data.Details.IssueDate); err == nil {
		issue = d
	}
	due := inv.DueDate()
	if issue.IsEmpty() || due.IsEmpty() {
		return defaultPaymentTermDays
	}
	days := issue.DaysUntil(due)
	if days < 0 {
		return defaultPaymentTermDays
	}
	return days
}
