package services

import (
	"context"
	"errors"
	"testing"

	"facturepro/internal/amqp"
	"facturepro/internal/core"
	"facturepro/internal/storage"
)

const samplePDF = "JVBERi0xLjQK" // "%PDF-1.4\n"

func TestInvoiceService_Preview(t *testing.T) {
	s := NewInvoiceService(nil, nil)
	got := s.Preview([]core.LineItem{
		{Description: "a", Quantity: "2", UnitPrice: "100,50", VATRate: 21},
		{Description: "b", Quantity: "1", UnitPrice: "10", VATRate: 6},
	})
	want := core.InvoiceTotals{Subtotal: 211, VATTotal: 42.81, GrandTotal: 253.81}
	if core.RoundTotals(got) != want {
		t.Errorf("Preview() = %+v, want %+v", got, want)
	}
}

func TestInvoiceService_Finalize(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	pub := &fakePublisher{}
	s := NewInvoiceService(repo, pub)
	ctx := context.Background()

	inv, err := s.Finalize(ctx, profile.ID, FinalizeRequest{
		Data:              invoiceData("2026-001", "2026-01-15", "2026-02-14"),
		RemindersEnabled:  true,
		RecurringInterval: core.IntervalMonthly,
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if inv.Status != core.StatusPending || inv.LedgerSync != core.LedgerPending {
		t.Errorf("status = %s ledger = %s, want pending/pending", inv.Status, inv.LedgerSync)
	}
	want := core.InvoiceTotals{Subtotal: 201, VATTotal: 42.21, GrandTotal: 243.21}
	if inv.Totals != want {
		t.Errorf("Totals = %+v, want %+v", inv.Totals, want)
	}
	if inv.NextGenerationDate.String() != "2026-02-15" {
		t.Errorf("NextGenerationDate = %s, want 2026-02-15", inv.NextGenerationDate)
	}
	if inv.ClientName != "Client SA" || inv.Number != "2026-001" {
		t.Errorf("unexpected invoice: %+v", inv)
	}

	stored, err := repo.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice() error = %v", err)
	}
	if stored.Totals != want || !stored.RemindersEnabled {
		t.Errorf("stored invoice = %+v", stored)
	}

	if len(pub.ledger) != 1 || pub.ledger[0] != inv.ID {
		t.Errorf("ledger messages = %v, want [%s]", pub.ledger, inv.ID)
	}
	if len(pub.emails) != 0 {
		t.Errorf("unexpected e-mail messages: %v", pub.emails)
	}
}

func TestInvoiceService_FinalizeAndSend(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	pub := &fakePublisher{}
	s := NewInvoiceService(repo, pub)

	inv, err := s.Finalize(context.Background(), profile.ID, FinalizeRequest{
		Data:      invoiceData("2026-002", "2026-01-15", ""),
		SendEmail: true,
		PDFBase64: samplePDF,
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if len(pub.emails) != 1 {
		t.Fatalf("e-mail messages = %d, want 1", len(pub.emails))
	}
	msg := pub.emails[0]
	if msg.InvoiceID != inv.ID || msg.Kind != amqp.EmailInvoice || msg.PDFBase64 != samplePDF {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.ReplyTo != "atelier@example.be" {
		t.Errorf("ReplyTo = %q, want seller e-mail", msg.ReplyTo)
	}
}

func TestInvoiceService_FinalizeFillsSellerFromProfile(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, nil)

	data := invoiceData("2026-003", "2026-01-15", "")
	data.Seller = core.Party{}

	inv, err := s.Finalize(context.Background(), profile.ID, FinalizeRequest{Data: data})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if inv.Data.Seller != profile.Seller() {
		t.Errorf("Seller = %+v, want %+v", inv.Data.Seller, profile.Seller())
	}
	if inv.RecurringInterval != core.IntervalNone || !inv.NextGenerationDate.IsEmpty() {
		t.Errorf("one-off invoice got schedule %s/%s", inv.RecurringInterval, inv.NextGenerationDate)
	}
}

func TestInvoiceService_FinalizeErrors(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, &fakePublisher{})

	noLines := invoiceData("2026-010", "2026-01-15", "")
	noLines.Lines = nil
	noEmail := invoiceData("2026-011", "2026-01-15", "")
	noEmail.Client.Email = ""

	tests := []struct {
		name      string
		profileID string
		req       FinalizeRequest
		want      error
	}{
		{"unknown profile", "nobody", FinalizeRequest{Data: invoiceData("1", "2026-01-15", "")}, storage.ErrNotFound},
		{"no lines", profile.ID, FinalizeRequest{Data: noLines}, core.ErrNoLines},
		{"due before issue", profile.ID, FinalizeRequest{Data: invoiceData("1", "2026-01-15", "2026-01-01")}, core.ErrDueBeforeIssue},
		{"unknown interval", profile.ID, FinalizeRequest{Data: invoiceData("1", "2026-01-15", ""), RecurringInterval: "weekly"}, core.ErrInvalidInterval},
		{"send without client e-mail", profile.ID, FinalizeRequest{Data: noEmail, SendEmail: true, PDFBase64: samplePDF}, core.ErrMissingClientEmail},
		{"send without pdf", profile.ID, FinalizeRequest{Data: invoiceData("1", "2026-01-15", ""), SendEmail: true}, ErrInvalidPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Finalize(context.Background(), tt.profileID, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Finalize() error = %v, want %v", err, tt.want)
			}
		})
	}

	invoices, _ := repo.ListInvoices(context.Background(), profile.ID)
	if len(invoices) != 0 {
		t.Errorf("rejected requests stored %d invoices", len(invoices))
	}
}

func TestInvoiceService_FinalizeSurvivesPublishFailure(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, &fakePublisher{err: errors.New("broker down")})

	inv, err := s.Finalize(context.Background(), profile.ID, FinalizeRequest{
		Data: invoiceData("2026-004", "2026-01-15", ""),
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v, want saved invoice", err)
	}
	if inv.LedgerSync != core.LedgerPending {
		t.Errorf("LedgerSync = %s, want pending for the sweep", inv.LedgerSync)
	}
}

func TestInvoiceService_Send(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	pub := &fakePublisher{}
	s := NewInvoiceService(repo, pub)
	ctx := context.Background()

	inv, err := s.Finalize(ctx, profile.ID, FinalizeRequest{Data: invoiceData("2026-005", "2026-01-15", "")})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if err := s.Send(ctx, inv.ID, samplePDF, "billing@atelier.be"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(pub.emails) != 1 || pub.emails[0].ReplyTo != "billing@atelier.be" {
		t.Fatalf("unexpected e-mails: %+v", pub.emails)
	}

	if err := s.Send(ctx, inv.ID, "%%%", ""); !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("Send(bad pdf) error = %v, want ErrInvalidPDF", err)
	}
	if err := s.Send(ctx, "missing", samplePDF, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Send(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := s.Cancel(ctx, inv.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if err := s.Send(ctx, inv.ID, samplePDF, ""); !errors.Is(err, ErrInvoiceCancelled) {
		t.Errorf("Send(cancelled) error = %v, want ErrInvoiceCancelled", err)
	}
}

func TestInvoiceService_SendWithoutPublisher(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, nil)
	ctx := context.Background()

	inv, err := s.Finalize(ctx, profile.ID, FinalizeRequest{Data: invoiceData("2026-006", "2026-01-15", "")})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if err := s.Send(ctx, inv.ID, samplePDF, ""); !errors.Is(err, ErrDeliveryUnavailable) {
		t.Errorf("Send() error = %v, want ErrDeliveryUnavailable", err)
	}
}

func TestInvoiceService_StatusTransitions(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, nil)
	ctx := context.Background()

	finalize := func(number string) core.Invoice {
		t.Helper()
		inv, err := s.Finalize(ctx, profile.ID, FinalizeRequest{Data: invoiceData(number, "2026-01-15", "")})
		if err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		return inv
	}

	paid := finalize("2026-020")
	got, err := s.MarkPaid(ctx, paid.ID)
	if err != nil || got.Status != core.StatusPaid {
		t.Fatalf("MarkPaid() = %s, %v", got.Status, err)
	}
	if _, err := s.Cancel(ctx, paid.ID); !errors.Is(err, core.ErrInvalidStatusChange) {
		t.Errorf("Cancel(paid) error = %v, want ErrInvalidStatusChange", err)
	}
	if _, err := s.MarkPaid(ctx, paid.ID); !errors.Is(err, core.ErrInvalidStatusChange) {
		t.Errorf("MarkPaid(paid) error = %v, want ErrInvalidStatusChange", err)
	}

	cancelled := finalize("2026-021")
	if _, err := s.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := s.MarkPaid(ctx, cancelled.ID); !errors.Is(err, core.ErrInvalidStatusChange) {
		t.Errorf("MarkPaid(cancelled) error = %v, want ErrInvalidStatusChange", err)
	}

	stored, _ := repo.GetInvoice(ctx, cancelled.ID)
	if stored.Status != core.StatusCancelled {
		t.Errorf("stored status = %s, want cancelled", stored.Status)
	}

	if _, err := s.MarkPaid(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MarkPaid(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInvoiceService_Summary(t *testing.T) {
	repo := newTestRepository(t)
	profile := seedProfile(t, repo)
	s := NewInvoiceService(repo, nil)
	ctx := context.Background()

	for _, n := range []string{"2026-030", "2026-031"} {
		if _, err := s.Finalize(ctx, profile.ID, FinalizeRequest{Data: invoiceData(n, "2026-01-15", "")}); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
	}
	invoices, _ := s.List(ctx, profile.ID)
	if len(invoices) != 2 {
		t.Fatalf("List() = %d invoices, want 2", len(invoices))
	}
	if _, err := s.MarkPaid(ctx, invoices[0].ID); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}

	sum, err := s.Summary(ctx, profile.ID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.Count != 2 || sum.Paid != 243.21 || sum.Outstanding != 243.21 {
		t.Errorf("Summary() = %+v", sum)
	}
}

func TestInvoiceService_Close(t *testing.T) {
	s := &InvoiceService{}
	if err := s.Close(); err != nil {
		t.Fatalf("Close should not return error with nil components: %v", err)
	}
}
