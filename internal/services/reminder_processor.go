package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"facturepro/internal/amqp"
	"facturepro/internal/core"
	"facturepro/internal/storage"
)

// ReminderProcessor sends payment reminders for open invoices past their
// due date.
type ReminderProcessor struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	gap       time.Duration
	maxCount  int
}

// NewReminderProcessor sends at most maxCount reminders per invoice, at
// least gap apart.
func NewReminderProcessor(storage *storage.SQLiteRepository, publisher Publisher, gap time.Duration, maxCount int) *ReminderProcessor {
	return &ReminderProcessor{
		storage:   storage,
		publisher: publisher,
		gap:       gap,
		maxCount:  maxCount,
	}
}

// ProcessOverdue queues one reminder per eligible invoice and records it.
// It returns the number of reminders queued.
func (p *ReminderProcessor) ProcessOverdue(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	candidates, err := p.storage.OverdueReminderCandidates(ctx, now, p.gap, p.maxCount)
	if err != nil {
		return 0, fmt.Errorf("failed to get reminder candidates: %w", err)
	}

	slog.InfoContext(ctx, "Processing payment reminders",
		"candidates", len(candidates),
		"max_reminders", p.maxCount)

	sent := 0
	for _, inv := range candidates {
		msg := amqp.NewInvoiceEmailMessage(inv.ID, amqp.EmailReminder)
		msg.ReplyTo = inv.Data.Seller.Email
		if err := p.publisher.PublishInvoiceEmail(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to queue payment reminder",
				"invoice_id", inv.ID,
				"invoice_number", inv.Number,
				"error", err)
			continue
		}

		if err := p.storage.MarkReminderSent(ctx, inv.ID, now); err != nil {
			if errors.Is(err, core.ErrInvalidStatusChange) {
				slog.WarnContext(ctx, "Invoice settled while reminder was queued",
					"invoice_id", inv.ID,
					"error", err)
				continue
			}
			slog.ErrorContext(ctx, "Failed to record payment reminder",
				"invoice_id", inv.ID,
				"error", err)
			continue
		}

		sent++
		slog.InfoContext(ctx, "Payment reminder queued",
			"invoice_id", inv.ID,
			"invoice_number", inv.Number,
			"reminder", inv.ReminderCount+1)
	}

	slog.InfoContext(ctx, "Payment reminder processing complete",
		"sent", sent,
		"total_checked", len(candidates))

	return sent, nil
}
