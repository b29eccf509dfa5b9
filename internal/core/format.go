package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatConfig describes how an amount of money is rendered as text.
type FormatConfig struct {
	Locale           string
	GroupSeparator   string
	DecimalSeparator string
	Symbol           string
	// SymbolFirst puts the symbol before the number ("€ 12,50").
	SymbolFirst bool
	Decimals    int32
}

// BelgianFrench renders "1 234,50 €" with plain ASCII spaces, which the
// document fonts can display.
var BelgianFrench = FormatConfig{
	Locale:           "fr-BE",
	GroupSeparator:   " ",
	DecimalSeparator: ",",
	Symbol:           "€",
	Decimals:         2,
}

// BelgianDutch renders "€ 1.234,50".
var BelgianDutch = FormatConfig{
	Locale:           "nl-BE",
	GroupSeparator:   ".",
	DecimalSeparator: ",",
	Symbol:           "€",
	SymbolFirst:      true,
	Decimals:         2,
}

// FormatConfigFor returns the configuration of a language code, falling back
// to BelgianFrench.
func FormatConfigFor(lang string) FormatConfig {
	if strings.EqualFold(lang, "nl") || strings.EqualFold(lang, BelgianDutch.Locale) {
		return BelgianDutch
	}
	return BelgianFrench
}

// FormatCurrency renders amount in the Belgian-French convention.
func FormatCurrency(amount float64) string {
	return FormatCurrencyWith(BelgianFrench, amount)
}

// FormatCurrencyWith renders amount with cfg. Amounts are rounded half away
// from zero on their shortest decimal form, so 1.005 shows as 1,01. Values
// that round to zero, negative zero included, print unsigned: -0.001 shows
// as "0,00 €" and never as "-0,00 €". NaN and infinities do not panic.
func FormatCurrencyWith(cfg FormatConfig, amount float64) string {
	var number string
	switch {
	case math.IsNaN(amount):
		number = "NaN"
	case math.IsInf(amount, 1):
		number = "∞"
	case math.IsInf(amount, -1):
		number = "-∞"
	default:
		number = formatNumber(cfg, amount)
	}
	if cfg.Symbol == "" {
		return number
	}
	if cfg.SymbolFirst {
		return cfg.Symbol + " " + number
	}
	return number + " " + cfg.Symbol
}

func formatNumber(cfg FormatConfig, amount float64) string {
	d := decimal.NewFromFloat(amount).Round(cfg.Decimals)
	negative := d.IsNegative()
	fixed := d.Abs().StringFixed(cfg.Decimals)

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(groupDigits(intPart, cfg.GroupSeparator))
	if frac != "" {
		b.WriteString(cfg.DecimalSeparator)
		b.WriteString(frac)
	}
	return b.String()
}

func groupDigits(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// RoundCents rounds to two decimals, the precision of stored totals.
func RoundCents(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// RoundTotals rounds every component of t to cents.
func RoundTotals(t InvoiceTotals) InvoiceTotals {
	return InvoiceTotals{
		Subtotal:   RoundCents(t.Subtotal),
		VATTotal:   RoundCents(t.VATTotal),
		GrandTotal: RoundCents(t.GrandTotal),
	}
}

// formatPlain prints a number the way a user would type it back in.
func formatPlain(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).String()
}
