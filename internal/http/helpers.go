package http

import (
	"net/http"
	"strings"

	"facturepro/internal/core"
)

// sanitizeInput removes control characters except tab, newline and
// carriage return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatConfig picks the currency format from the lang query parameter,
// Belgian-French by default.
func formatConfig(r *http.Request) core.FormatConfig {
	return core.FormatConfigFor(r.URL.Query().Get("lang"))
}

type formattedTotals struct {
	Subtotal   string `json:"subtotal"`
	VATTotal   string `json:"vatTotal"`
	GrandTotal string `json:"grandTotal"`
}

func formatTotals(cfg core.FormatConfig, t core.InvoiceTotals) formattedTotals {
	return formattedTotals{
		Subtotal:   core.FormatCurrencyWith(cfg, t.Subtotal),
		VATTotal:   core.FormatCurrencyWith(cfg, t.VATTotal),
		GrandTotal: core.FormatCurrencyWith(cfg, t.GrandTotal),
	}
}

// invoiceView is an invoice with the values the builder displays next to it.
type invoiceView struct {
	core.Invoice
	DueDate   core.Date       `json:"dueDate"`
	Reference string          `json:"reference"`
	Formatted formattedTotals `json:"formatted"`
}

func newInvoiceView(cfg core.FormatConfig, inv core.Invoice) invoiceView {
	return invoiceView{
		Invoice:   inv,
		DueDate:   inv.DueDate(),
		Reference: inv.Reference(),
		Formatted: formatTotals(cfg, inv.Totals),
	}
}

func newInvoiceViews(cfg core.FormatConfig, invoices []core.Invoice) []invoiceView {
	out := make([]invoiceView, len(invoices))
	for i, inv := range invoices {
		out[i] = newInvoiceView(cfg, inv)
	}
	return out
}
