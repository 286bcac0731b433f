package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveReadDelete(t *testing.T) {
	tempDir := t.TempDir()
	s := NewLocalFileStorage(tempDir, zap.NewNop())
	ctx := context.Background()

	t.Run("saves with parent directories", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "deep/nested/file.bin", []byte("content")))
		assert.FileExists(t, filepath.Join(tempDir, "deep", "nested", "file.bin"))

		got, err := s.Read(ctx, "deep/nested/file.bin")
		require.NoError(t, err)
		assert.Equal(t, []byte("content"), got)
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "over/file.txt", []byte("original")))
		require.NoError(t, s.Save(ctx, "over/file.txt", []byte("updated")))

		got, err := s.Read(ctx, "over/file.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("updated"), got)

		entries, err := os.ReadDir(filepath.Join(tempDir, "over"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing file matches fs.ErrNotExist", func(t *testing.T) {
		_, err := s.Read(ctx, "nope.bin")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
		assert.False(t, s.Exists(ctx, "nope.bin"))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "gone.bin", []byte("x")))
		require.NoError(t, s.Delete(ctx, "gone.bin"))
		require.NoError(t, s.Delete(ctx, "gone.bin"))
		assert.False(t, s.Exists(ctx, "gone.bin"))
	})
}

func TestLocalFileStorage_RejectsEscapes(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, p := range []string{"../outside.txt", "a/../../outside.txt", ""} {
		t.Run(p, func(t *testing.T) {
			assert.ErrorIs(t, s.Save(ctx, p, []byte("x")), ErrPathEscape)
			_, err := s.Read(ctx, p)
			assert.ErrorIs(t, err, ErrPathEscape)
		})
	}
}

func TestLocalFolderManager(t *testing.T) {
	base := t.TempDir()
	m := NewLocalFolderManager(base, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "draft-1_a", m.SanitizeName("../draft-1_a/"))
	assert.Equal(t, "", m.SanitizeName("../.."))

	path, err := m.CreateFolder(ctx, "draft-1")
	require.NoError(t, err)
	assert.DirExists(t, path)
	assert.True(t, m.Exists("draft-1"))

	_, err = m.CreateFolder(ctx, "draft-2")
	require.NoError(t, err)

	names, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft-1", "draft-2"}, names)

	empty, err := m.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, m.Delete(ctx, "draft-1"))
	assert.False(t, m.Exists("draft-1"))

	_, err = m.CreateFolder(ctx, "///")
	assert.Error(t, err)
}
