package core

import (
	"regexp"
	"strconv"
	"strings"
)

// referenceDigits is the length of the base number inside a structured reference.
const referenceDigits = 10

var structuredReferencePattern = regexp.MustCompile(`^\+\+\+ (\d{3})/(\d{4})/(\d{5}) \+\+\+$`)

// StructuredReference builds the Belgian structured payment communication
// (+++ AAA/BBBB/CCCCC +++) from the digits of an invoice identifier.
// Identifiers without any digit yield "".
func StructuredReference(identifier string) string {
	var digits strings.Builder
	for _, r := range identifier {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	base := digits.String()
	if base == "" {
		return ""
	}
	if len(base) > referenceDigits {
		base = base[len(base)-referenceDigits:]
	} else {
		base = strings.Repeat("0", referenceDigits-len(base)) + base
	}

	full := base + checkDigits(base)
	return "+++ " + full[:3] + "/" + full[3:7] + "/" + full[7:] + " +++"
}

// ValidStructuredReference verifies the layout and mod-97 check of a reference.
func ValidStructuredReference(ref string) bool {
	m := structuredReferencePattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return false
	}
	full := m[1] + m[2] + m[3]
	return checkDigits(full[:referenceDigits]) == full[referenceDigits:]
}

func checkDigits(base string) string {
	// Ten digits always fit in a uint64.
	v, _ := strconv.ParseUint(base, 10, 64)
	rem := v % 97
	if rem == 0 {
		rem = 97
	}
	if rem < 10 {
		return "0" + strconv.FormatUint(rem, 10)
	}
	return strconv.FormatUint(rem, 10)
}
