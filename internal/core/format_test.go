package core

import (
	"math"
	"strings"
	"testing"
)

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{1234.5, "1 234,50 €"},
		{0, "0,00 €"},
		{7, "7,00 €"},
		{999, "999,00 €"},
		{-1234.567, "-1 234,57 €"},
		{1234567.891, "1 234 567,89 €"},
		{1.005, "1,01 €"},
		{999.995, "1 000,00 €"},
		{-0.001, "0,00 €"},
		{-0.004, "0,00 €"},
		{math.Copysign(0, -1), "0,00 €"},
		{math.NaN(), "NaN €"},
		{math.Inf(1), "∞ €"},
		{math.Inf(-1), "-∞ €"},
	}
	for _, tc := range cases {
		got := FormatCurrency(tc.in)
		if got != tc.out {
			t.Fatalf("FormatCurrency(%v) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestFormatCurrencyUsesASCIISpaces(t *testing.T) {
	got := FormatCurrency(1234.5)
	if strings.ContainsAny(got, "\u202f\u00a0") {
		t.Fatalf("%q contains a no-break space", got)
	}
	if !strings.HasSuffix(got, "€") {
		t.Fatalf("%q does not end with the euro sign", got)
	}
	_, frac, ok := strings.Cut(strings.TrimSuffix(got, " €"), ",")
	if !ok || len(frac) != 2 {
		t.Fatalf("%q does not show exactly two decimals", got)
	}
}

func TestFormatCurrencyWith(t *testing.T) {
	if got := FormatCurrencyWith(BelgianDutch, 1234.5); got != "€ 1.234,50" {
		t.Fatalf("dutch format = %q", got)
	}
	if got := FormatCurrencyWith(BelgianDutch, -0.001); got != "€ 0,00" {
		t.Fatalf("dutch rounded zero = %q", got)
	}
	plain := FormatConfig{DecimalSeparator: ".", Decimals: 2}
	if got := FormatCurrencyWith(plain, 1234.5); got != "1234.50" {
		t.Fatalf("plain format = %q", got)
	}
	if FormatConfigFor("nl") != BelgianDutch || FormatConfigFor("fr") != BelgianFrench || FormatConfigFor("") != BelgianFrench {
		t.Fatalf("unexpected FormatConfigFor mapping")
	}
}

func TestRoundCents(t *testing.T) {
	cases := []struct {
		in, out float64
	}{
		{2.675, 2.68},
		{12.5937, 12.59},
		{-1.005, -1.01},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := RoundCents(tc.in); got != tc.out {
			t.Fatalf("RoundCents(%v) = %v, want %v", tc.in, got, tc.out)
		}
	}
}
