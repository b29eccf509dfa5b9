// Package core provides money parsing and invoice total calculations.
//
// This file contains the locale-tolerant amount parser and the line/VAT
// aggregation used by the builder preview, finalization and every
// document that displays totals.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Amount is a user-entered decimal as typed in the builder ("12,50", "3", "").
// Its JSON form accepts a string, a number or null. Booleans, objects and
// arrays decode to the empty amount and therefore count as zero.
type Amount string

// UnmarshalJSON accepts JSON strings and JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*a = ""
		return nil
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	case c != '-' && (c < '0' || c > '9'):
		*a = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Value returns the parsed numeric value of the amount.
func (a Amount) Value() float64 {
	return ParseAmount(string(a))
}

// leadingNumber matches the numeric prefix a user can type before stray text.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseAmount converts raw builder input into a number.
//
// Numbers are returned unchanged. Text has its first comma replaced by a
// period and its leading numeric part parsed; "12,50" -> 12.5, "12abc" -> 12.
// Empty, nil and unparseable input yield 0, as does any non-finite value.
// Thousands separators are not understood: "1,234,56" parses as 1.234.
func ParseAmount(raw any) float64 {
	var v float64
	switch x := raw.(type) {
	case nil:
		return 0
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case json.Number:
		v = parseAmountText(x.String())
	case Amount:
		v = parseAmountText(string(x))
	case string:
		v = parseAmountText(x)
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// isLeadingBlank reports Unicode white space and the byte order mark, both of
// which show up in pasted amounts.
func isLeadingBlank(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

func parseAmountText(s string) float64 {
	s = strings.TrimLeftFunc(s, isLeadingBlank)
	if s == "" {
		return 0
	}
	s = strings.Replace(s, ",", ".", 1)
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// Out-of-range exponents land here; ParseFloat still reports ±Inf.
		return 0
	}
	return v
}

// LineTotal is quantity × unit price. Negative input is not rejected.
func LineTotal(quantity, unitPrice any) float64 {
	return ParseAmount(quantity) * ParseAmount(unitPrice)
}

// LineVAT applies a percentage rate to a line total without rounding.
func LineVAT(lineTotal, vatRatePercent float64) float64 {
	return lineTotal * (vatRatePercent / 100)
}

// Subtotal sums the line totals, excluding VAT.
func Subtotal(lines []LineItem) float64 {
	sum := 0.0
	for _, l := range lines {
		sum += LineTotal(l.Quantity, l.UnitPrice)
	}
	return sum
}

// VATTotal sums the VAT of every line.
func VATTotal(lines []LineItem) float64 {
	sum := 0.0
	for _, l := range lines {
		sum += LineVAT(LineTotal(l.Quantity, l.UnitPrice), l.VATRate)
	}
	return sum
}

// GrandTotal adds an already computed subtotal and VAT total.
//
// It does not look at the lines: callers are responsible for passing values
// derived from the same line set.
func GrandTotal(subtotal, vatTotal float64) float64 {
	return subtotal + vatTotal
}

// ComputeTotals derives the full totals triple from the lines.
func ComputeTotals(lines []LineItem) InvoiceTotals {
	sub := Subtotal(lines)
	vat := VATTotal(lines)
	return InvoiceTotals{
		Subtotal:   sub,
		VATTotal:   vat,
		GrandTotal: GrandTotal(sub, vat),
	}
}
