package core

// StatusAmount aggregates the invoices sharing a status.
type StatusAmount struct {
	Status Status  `json:"status"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// DashboardSummary is a compact overview of a profile's invoices.
type DashboardSummary struct {
	Count       int            `json:"count"`
	Outstanding float64        `json:"outstanding"`
	Overdue     float64        `json:"overdue"`
	Paid        float64        `json:"paid"`
	ByStatus    []StatusAmount `json:"byStatus"`
}

var summaryOrder = []Status{StatusPending, StatusOverdue, StatusPaid, StatusCancelled}

// Summarize totals grand amounts per status. Cancelled invoices are counted
// but never outstanding.
func Summarize(invoices []Invoice) DashboardSummary {
	byStatus := make(map[Status]*StatusAmount, len(summaryOrder))
	for _, s := range summaryOrder {
		byStatus[s] = &StatusAmount{Status: s}
	}

	var sum DashboardSummary
	for _, inv := range invoices {
		sum.Count++
		agg, ok := byStatus[inv.Status]
		if !ok {
			continue
		}
		agg.Count++
		agg.Amount += inv.Totals.GrandTotal
		switch inv.Status {
		case StatusPending:
			sum.Outstanding += inv.Totals.GrandTotal
		case StatusOverdue:
			sum.Outstanding += inv.Totals.GrandTotal
			sum.Overdue += inv.Totals.GrandTotal
		case StatusPaid:
			sum.Paid += inv.Totals.GrandTotal
		}
	}

	sum.Outstanding = RoundCents(sum.Outstanding)
	sum.Overdue = RoundCents(sum.Overdue)
	sum.Paid = RoundCents(sum.Paid)
	for _, s := range summaryOrder {
		agg := byStatus[s]
		agg.Amount = RoundCents(agg.Amount)
		sum.ByStatus = append(sum.ByStatus, *agg)
	}
	return sum
}
