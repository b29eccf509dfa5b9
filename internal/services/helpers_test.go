package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"facturepro/internal/amqp"
	"facturepro/internal/core"
	"facturepro/internal/storage"
)

func newTestRepository(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "facturepro.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedProfile(t *testing.T, repo *storage.SQLiteRepository) core.Profile {
	t.Helper()
	p := core.Profile{
		ID:          "profile-1",
		CompanyName: "Atelier SRL",
		Email:       "atelier@example.be",
		VATNumber:   "BE0123456789",
		Address:     "Rue Haute 1, 1000 Bruxelles",
		IBAN:        "BE68539007547034",
	}
	if err := repo.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	return p
}

// invoiceData is a valid document: 2 × 100,50 at 21% VAT, total 243.21.
func invoiceData(number, issue, due string) core.InvoiceData {
	return core.InvoiceData{
		Seller: core.Party{
			CompanyName: "Atelier SRL",
			VATNumber:   "BE0123456789",
			Email:       "atelier@example.be",
			IBAN:        "BE68539007547034",
		},
		Client: core.Party{
			CompanyName: "Client SA",
			VATNumber:   "BE0987654321",
			Email:       "compta@client.be",
		},
		Details: core.InvoiceDetails{InvoiceNumber: number, IssueDate: issue, DueDate: due},
		Lines: []core.LineItem{
			{ID: "l1", Description: "Audit", Quantity: "2", UnitPrice: "100,50", VATRate: 21},
		},
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	emails []*amqp.InvoiceEmailMessage
	ledger []string
	err    error
}

func (f *fakePublisher) PublishInvoiceEmail(_ context.Context, msg *amqp.InvoiceEmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.emails = append(f.emails, msg)
	return nil
}

func (f *fakePublisher) PublishLedgerSync(_ context.Context, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ledger = append(f.ledger, invoiceID)
	return nil
}
