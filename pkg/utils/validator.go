package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinTaxIDLength is the shortest accepted tax identifier
const MinTaxIDLength = 8

var (
	emailShape   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
)

// IsEmailShape reports whether s looks like local@domain.tld
func IsEmailShape(s string) bool {
	return emailShape.MatchString(s)
}

// ValidateTaxID validates the length of a tax identifier
func ValidateTaxID(taxID string) error {
	if utf8.RuneCountInString(strings.TrimSpace(taxID)) < MinTaxIDLength {
		return fmt.Errorf("tax ID must have at least %d characters: %s", MinTaxIDLength, taxID)
	}
	return nil
}

// SanitizeString removes control characters other than tab and newline,
// then trims surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
