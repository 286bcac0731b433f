package service

import (
	"context"
	"testing"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftService_AttachListGetRemove(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	metas, err := env.draftSvc.Attach(ctx, "d1", "e1", []UploadFile{
		{FileName: "a.pdf", ContentType: "application/pdf", Content: pdfBytes},
		{FileName: "b.pdf", Content: pdfBytes},
	})
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "application/pdf", metas[1].ContentType)

	staged, err := env.draftSvc.List(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, staged["e1"], 2)

	blob, err := env.draftSvc.Get(ctx, "d1", "e1", metas[0].ID)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, blob.Content)

	require.NoError(t, env.draftSvc.Remove(ctx, "d1", "e1", metas[0].ID))
	staged, err = env.draftSvc.List(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, staged["e1"], 1)
	assert.Equal(t, metas[1].ID, staged["e1"][0].ID)

	require.NoError(t, env.draftSvc.Clear(ctx, "d1"))
	staged, err = env.draftSvc.List(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestDraftService_Attach_AppliesPolicy(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.draftSvc.Attach(ctx, "d1", "e1", []UploadFile{{FileName: "evil.exe", Content: []byte("MZ\x90\x00\x03\x00\x00\x00")}})
	require.ErrorIs(t, err, entity.ErrUnsupportedMediaType)

	_, err = env.draftSvc.Attach(ctx, "", "e1", []UploadFile{{FileName: "a.pdf", Content: pdfBytes}})
	require.ErrorIs(t, err, entity.ErrValidation)

	staged, err := env.draftSvc.List(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestDraftService_Get_Missing(t *testing.T) {
	env := setupEnv(t)

	_, err := env.draftSvc.Get(context.Background(), "d1", "e1", "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
