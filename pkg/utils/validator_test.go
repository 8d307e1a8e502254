package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmailShape(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"billing@acme.com", true},
		{"a.b+c@sub.domain.io", true},
		{"no-at-sign.com", false},
		{"user@nodot", false},
		{"user @acme.com", false},
		{"@acme.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsEmailShape(tt.email))
		})
	}
}

func TestValidateTaxID(t *testing.T) {
	assert.NoError(t, ValidateTaxID("20-12345678-9"))
	assert.NoError(t, ValidateTaxID("12345678"))
	assert.Error(t, ValidateTaxID("1234567"))
	assert.Error(t, ValidateTaxID("   1234  "))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "acme", SanitizeString("  ac\x00me\n "))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline\x1b two"))
}
