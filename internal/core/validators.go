package core

import (
	"regexp"
	"strings"
)

var (
	beVATPattern = regexp.MustCompile(`^BE\s?0\d{3}[.\s]?\d{3}[.\s]?\d{3}$`)
	ibanPattern  = regexp.MustCompile(`^[a-zA-Z]{2}\d{2}\s?([a-zA-Z0-9]{4}\s?){2,7}[a-zA-Z0-9]{1,4}$`)
)

// ValidBEVAT accepts Belgian enterprise VAT numbers such as "BE 0123.456.789".
func ValidBEVAT(v string) bool {
	return beVATPattern.MatchString(strings.TrimSpace(v))
}

// ValidIBAN checks the shape of an IBAN; the check digits are not verified.
func ValidIBAN(v string) bool {
	return ibanPattern.MatchString(strings.TrimSpace(v))
}

func isBelgianVAT(v string) bool {
	return len(v) >= 2 && strings.EqualFold(v[:2], "BE")
}
