package domain

import (
	"regexp"
	"strings"
	"unicode"

	dErrors "carp/pkg/domain-errors"
)

// NationalID is a normalized national identity number (NRIC/FIN).
// Invariant: the value matches nricPattern; it is the only key a participant
// is ever deduplicated on.
//
// Usage: construct via ParseNationalID at trust boundaries.
type NationalID string

// One prefix letter, seven digits, one checksum letter.
var nricPattern = regexp.MustCompile(`^[STFGM][0-9]{7}[A-Z]$`)

const maxRawNationalIDLen = 64

// NormalizeNationalID strips all whitespace and uppercases. It does not validate.
func NormalizeNationalID(raw string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
}

// ParseNationalID normalizes raw input and validates the NRIC shape.
//
// Errors: returns CodeInvalidIdentity for empty, oversized or malformed input.
func ParseNationalID(raw string) (NationalID, error) {
	if len(raw) > maxRawNationalIDLen {
		return "", dErrors.New(dErrors.CodeInvalidIdentity, "national ID is too long")
	}
	normalized := NormalizeNationalID(raw)
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeInvalidIdentity, "national ID is required")
	}
	if !nricPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeInvalidIdentity, "national ID is malformed")
	}
	return NationalID(normalized), nil
}

func (n NationalID) String() string {
	return string(n)
}

// Masked hides the middle digits, e.g. S****567A. Use it in logs.
func (n NationalID) Masked() string {
	if len(n) != 9 {
		return "****"
	}
	return string(n[:1]) + "****" + string(n[5:])
}
