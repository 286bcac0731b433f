package storage

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Check(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name     string
		declared string
		content  []byte
		wantType string
		wantErr  error
	}{
		{name: "pdf", declared: "application/pdf", content: pdfBytes, wantType: "application/pdf"},
		{name: "png without declared type", content: pngBytes, wantType: "image/png"},
		{name: "octet-stream declared", declared: "application/octet-stream", content: pdfBytes, wantType: "application/pdf"},
		{name: "text", declared: "text/plain", content: []byte("hello there"), wantErr: entity.ErrUnsupportedMediaType},
		{name: "zip disguised as pdf", declared: "application/pdf", content: zipBytes, wantErr: entity.ErrUnsupportedMediaType},
		{name: "pdf declared as html", declared: "text/html; charset=utf-8", content: pdfBytes, wantErr: entity.ErrUnsupportedMediaType},
		{name: "empty", declared: "application/pdf", content: nil, wantErr: entity.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Check("file", tt.declared, tt.content)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got)
		})
	}
}

func TestPolicy_RejectsOversizedFile(t *testing.T) {
	policy := DefaultPolicy()
	big := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte{0}, 11<<20)...)

	_, err := policy.Check("big.pdf", "application/pdf", big)
	assert.ErrorIs(t, err, entity.ErrPayloadTooLarge)
}

func TestPolicy_CheckCount(t *testing.T) {
	policy := NewPolicy(0, 2, nil)

	assert.NoError(t, policy.CheckCount(2))
	assert.ErrorIs(t, policy.CheckCount(3), entity.ErrPayloadTooLarge)
	assert.ErrorIs(t, policy.CheckCount(0), entity.ErrValidation)
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2024, 5, 31, 13, 4, 5, 0, time.UTC)
	key := ObjectKey("r1", "e1", "my receipt.pdf", now)

	pattern := regexp.MustCompile(`^receipts/r1/e1/20240531T130405-[0-9a-f]{8}-my_receipt\.pdf$`)
	assert.Regexp(t, pattern, key)
	assert.NotEqual(t, key, ObjectKey("r1", "e1", "my receipt.pdf", now), "random suffix must differ")

	assert.Contains(t, ObjectKey("../..", "", "a.pdf", now), "receipts/unassigned/unassigned/")
}

func TestBuildObjectURL(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"", "receipts/a b.pdf"},
		{"https://cdn.example.com/{objectKey}", "https://cdn.example.com/receipts/a b.pdf"},
		{"https://cdn.example.com/get?key={objectKey}", "https://cdn.example.com/get?key=receipts%2Fa+b.pdf"},
		{"https://cdn.example.com/files/", "https://cdn.example.com/files/receipts/a b.pdf"},
		{"https://cdn.example.com/get?key=", "https://cdn.example.com/get?key=receipts%2Fa+b.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildObjectURL(tt.template, "receipts/a b.pdf"))
		})
	}
}
