package core

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// NextInvoiceNumber increments the trailing run of digits while keeping its
// width ("2026-009" -> "2026-010"). Numbers without trailing digits get a
// "-COPY" suffix. The result is not checked for collisions.
func NextInvoiceNumber(n string) string {
	i := len(n)
	for i > 0 && n[i-1] >= '0' && n[i-1] <= '9' {
		i--
	}
	if i == len(n) {
		return n + "-COPY"
	}
	digits := n[i:]
	v, _ := new(big.Int).SetString(digits, 10)
	next := v.Add(v, big.NewInt(1)).String()
	if len(next) < len(digits) {
		next = strings.Repeat("0", len(digits)-len(next)) + next
	}
	return n[:i] + next
}

// DefaultLine is the empty row the builder starts with.
func DefaultLine() LineItem {
	return LineItem{
		ID:        uuid.NewString(),
		Quantity:  "1",
		UnitPrice: "0",
		VATRate:   DefaultVATRate,
	}
}

// NewID returns a random identifier for stored records.
func NewID() string {
	return uuid.NewString()
}
