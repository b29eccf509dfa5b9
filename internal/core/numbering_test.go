package core

import "testing"

func TestNextInvoiceNumber(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"2026-009", "2026-010"},
		{"2026-001", "2026-002"},
		{"F-99", "F-100"},
		{"0009", "0010"},
		{"INV", "INV-COPY"},
		{"2026-A", "2026-A-COPY"},
		{"", "-COPY"},
	}
	for _, tc := range cases {
		if got := NextInvoiceNumber(tc.in); got != tc.out {
			t.Fatalf("NextInvoiceNumber(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestDefaultLine(t *testing.T) {
	a, b := DefaultLine(), DefaultLine()
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.Quantity != "1" || a.UnitPrice != "0" || a.VATRate != 21 {
		t.Fatalf("unexpected default line %+v", a)
	}
}
