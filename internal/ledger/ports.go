package ledger

import (
	"context"

	"facturepro/internal/core"
)

// Ports for outbound adapters.
type (
	// Writer exports finalized invoices to the bookkeeping ledger.
	// Appending an invoice already present returns its existing reference.
	Writer interface {
		AppendInvoice(ctx context.Context, e Entry) (rowRef string, err error)
	}
)

// Entry is one ledger row.
type Entry struct {
	InvoiceID  string
	Number     string
	IssueDate  core.Date
	DueDate    core.Date
	Client     string
	Subtotal   float64
	VATTotal   float64
	GrandTotal float64
	Reference  string
	Status     core.Status
}

// EntryFor builds the ledger row of an invoice from its stored snapshot.
func EntryFor(inv core.Invoice) Entry {
	totals := core.RoundTotals(inv.Totals)
	return Entry{
		InvoiceID:  inv.ID,
		Number:     inv.Number,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate(),
		Client:     inv.ClientName,
		Subtotal:   totals.Subtotal,
		VATTotal:   totals.VATTotal,
		GrandTotal: totals.GrandTotal,
		Reference:  inv.Reference(),
		Status:     inv.Status,
	}
}

// Columns is the header row matching Row.
var Columns = []string{"Numéro", "Date", "Échéance", "Client", "HTVA", "TVA", "Total", "Communication", "Statut", "ID"}

// Row lays the entry out in Columns order.
func (e Entry) Row() []any {
	return []any{
		e.Number,
		e.IssueDate.String(),
		e.DueDate.String(),
		e.Client,
		e.Subtotal,
		e.VATTotal,
		e.GrandTotal,
		e.Reference,
		string(e.Status),
		e.InvoiceID,
	}
}
