package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.pdf", "a.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan 1.png`, "scan_1.png"},
		{"hôtel reçu.jpg", "h_tel_re_u.jpg"},
		{"...", "receipt"},
		{"", "receipt"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}

func TestSanitizeFileName_TruncatesKeepingExtension(t *testing.T) {
	got := SanitizeFileName(strings.Repeat("x", 300) + ".pdf")
	assert.Len(t, got, 120)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "USD", NormalizeCurrency(""))
	assert.Equal(t, "EUR", NormalizeCurrency(" eur "))
}

func TestValidateStruct_CustomTags(t *testing.T) {
	type line struct {
		Category string `validate:"required,oneof=travel meals"`
		Currency string `validate:"required,currency"`
		Email    string `validate:"required,email"`
	}

	require.NoError(t, ValidateStruct(line{Category: "meals", Currency: "USD", Email: "a@b.co"}))

	err := ValidateStruct(line{Category: "golf", Currency: "usd", Email: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Category must be one of [travel meals]")
	assert.Contains(t, err.Error(), "Currency must be a 3-letter currency code")
	assert.Contains(t, err.Error(), "Email must be a valid email")
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.Error(t, ValidateEmail("user@"))
}
