package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"facturepro/internal/amqp"
	"facturepro/internal/core"
)

func TestReminderProcessor_ProcessOverdue(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, nil)
	ctx := context.Background()

	finalize := func(number, due string, reminders bool) core.Invoice {
		t.Helper()
		inv, err := s.Finalize(ctx, profile.ID, FinalizeRequest{
			Data:             invoiceData(number, "2026-01-15", due),
			RemindersEnabled: reminders,
		})
		if err != nil {
			t.Fatalf("Finalize(%s) error = %v", number, err)
		}
		return inv
	}

	late := finalize("2026-001", "2026-02-14", true)
	// Reminders off, then not due yet
	finalize("2026-002", "2026-02-14", false)
	finalize("2026-003", "2026-12-31", true)
	paid := finalize("2026-004", "2026-02-14", true)
	if _, err := s.MarkPaid(ctx, paid.ID); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}

	pub := &fakePublisher{}
	gap := 5 * 24 * time.Hour
	p := NewReminderProcessor(repo, pub, gap, 2)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	n, err := p.ProcessOverdue(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ProcessOverdue() = %d, %v; want 1", n, err)
	}
	if len(pub.emails) != 1 {
		t.Fatalf("e-mails = %d, want 1", len(pub.emails))
	}
	msg := pub.emails[0]
	if msg.InvoiceID != late.ID || msg.Kind != amqp.EmailReminder || msg.ReplyTo != "atelier@example.be" {
		t.Errorf("unexpected reminder: %+v", msg)
	}

	stored, _ := repo.GetInvoice(ctx, late.ID)
	if stored.Status != core.StatusOverdue || stored.ReminderCount != 1 || stored.LastReminderSentAt == nil {
		t.Errorf("reminder not recorded: status=%s count=%d last=%v", stored.Status, stored.ReminderCount, stored.LastReminderSentAt)
	}

	// Within the gap nothing is sent
	n, _ = p.ProcessOverdue(ctx, now.Add(24*time.Hour))
	if n != 0 {
		t.Errorf("ProcessOverdue(within gap) = %d, want 0", n)
	}

	// Overdue invoices keep receiving reminders after the gap
	n, _ = p.ProcessOverdue(ctx, now.Add(gap+time.Hour))
	if n != 1 {
		t.Errorf("ProcessOverdue(second) = %d, want 1", n)
	}

	// The maximum is reached
	n, _ = p.ProcessOverdue(ctx, now.Add(3*gap))
	if n != 0 {
		t.Errorf("ProcessOverdue(after max) = %d, want 0", n)
	}
	if len(pub.emails) != 2 {
		t.Errorf("total reminders = %d, want 2", len(pub.emails))
	}
}

func TestReminderProcessor_PublishFailureLeavesInvoiceUntouched(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, nil)
	ctx := context.Background()

	inv, err := s.Finalize(ctx, profile.ID, FinalizeRequest{
		Data:             invoiceData("2026-001", "2026-01-15", "2026-02-14"),
		RemindersEnabled: true,
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	p := NewReminderProcessor(repo, &fakePublisher{err: errors.New("broker down")}, time.Hour, 3)
	n, err := p.ProcessOverdue(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 0 {
		t.Fatalf("ProcessOverdue() = %d, %v; want 0, nil", n, err)
	}

	stored, _ := repo.GetInvoice(ctx, inv.ID)
	if stored.ReminderCount != 0 || stored.Status != core.StatusPending {
		t.Errorf("failed reminder was recorded: %+v", stored)
	}
}

// settlingPublisher marks the invoice paid while its reminder is in flight.
type settlingPublisher struct {
	fakePublisher
	service *InvoiceService
}

func (p *settlingPublisher) PublishInvoiceEmail(ctx context.Context, msg *amqp.InvoiceEmailMessage) error {
	if _, err := p.service.MarkPaid(ctx, msg.InvoiceID); err != nil {
		return err
	}
	return p.fakePublisher.PublishInvoiceEmail(ctx, msg)
}

func TestReminderProcessor_PaidDuringSendStaysPaid(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, nil)
	ctx := context.Background()

	inv, err := s.Finalize(ctx, profile.ID, FinalizeRequest{
		Data:             invoiceData("2026-001", "2026-01-15", "2026-02-14"),
		RemindersEnabled: true,
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	pub := &settlingPublisher{service: s}
	p := NewReminderProcessor(repo, pub, time.Hour, 3)
	n, err := p.ProcessOverdue(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 0 {
		t.Fatalf("ProcessOverdue() = %d, %v; want 0, nil", n, err)
	}
	if len(pub.emails) != 1 {
		t.Fatalf("e-mails = %d, want 1", len(pub.emails))
	}

	stored, _ := repo.GetInvoice(ctx, inv.ID)
	if stored.Status != core.StatusPaid || stored.ReminderCount != 0 {
		t.Errorf("settled invoice was reopened: status=%s count=%d", stored.Status, stored.ReminderCount)
	}
}

func TestReminderProcessor_NotInitialized(t *testing.T) {
	if _, err := NewReminderProcessor(nil, nil, time.Hour, 3).ProcessOverdue(context.Background(), time.Now()); err == nil {
		t.Error("expected error without storage and publisher")
	}
}
