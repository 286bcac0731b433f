package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExportFilter(t *testing.T) {
	t.Run("date only end covers the whole day", func(t *testing.T) {
		f, err := buildExportFilter("2024-06-01", "2024-06-30", []string{" a@example.com ", ""})
		require.NoError(t, err)

		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), f.Start)
		assert.Equal(t, time.Date(2024, 6, 30, 23, 59, 59, 999999999, time.UTC), f.End)
		assert.Equal(t, []string{"a@example.com"}, f.Employees)
	})

	t.Run("timestamps are kept as given", func(t *testing.T) {
		f, err := buildExportFilter("2024-06-01T08:00:00Z", "2024-06-01T18:00:00Z", nil)
		require.NoError(t, err)
		assert.Equal(t, 18, f.End.Hour())
		assert.Empty(t, f.Employees)
	})

	t.Run("rejects malformed bounds", func(t *testing.T) {
		_, err := buildExportFilter("June", "2024-06-30", nil)
		assert.ErrorContains(t, err, "--start")

		_, err = buildExportFilter("2024-06-01", "30/06/2024", nil)
		assert.ErrorContains(t, err, "--end")
	})
}
