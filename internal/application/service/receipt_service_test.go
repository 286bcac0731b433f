package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptService_Upload_LinksExistingExpense(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	report := submit(t, env, "r1")

	receipts, err := env.receipts.Upload(ctx, ReceiptUploadInput{
		ReportID:  "r1",
		ExpenseID: "e1",
		Files:     []UploadFile{{FileName: "a.pdf", ContentType: "application/pdf", Content: pdfBytes}},
	})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.NotNil(t, receipts[0].ExpenseID)
	assert.Equal(t, report.Expenses[0].ID, *receipts[0].ExpenseID)
	assert.Len(t, receipts[0].Checksum, 64)

	link, err := env.receipts.DownloadURL(ctx, "r1", receipts[0].ID)
	require.NoError(t, err)
	assert.Contains(t, link, receipts[0].Storage.Key)
}

func TestReceiptService_Upload_UnknownExpenseStaysUnlinked(t *testing.T) {
	env := setupEnv(t)
	submit(t, env, "r1")

	receipts, err := env.receipts.Upload(context.Background(), ReceiptUploadInput{
		ReportID:  "r1",
		ExpenseID: "e9",
		Files:     []UploadFile{{FileName: "a.pdf", Content: pdfBytes}},
	})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.False(t, receipts[0].IsReconciled())
}

func TestReceiptService_Upload_Rejections(t *testing.T) {
	tooBig := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte{' '}, 11<<20)...)

	tests := []struct {
		name    string
		input   ReceiptUploadInput
		wantErr error
	}{
		{
			name:    "11 MiB file",
			input:   ReceiptUploadInput{ReportID: "r1", ExpenseID: "e1", Files: []UploadFile{{FileName: "big.pdf", Content: tooBig}}},
			wantErr: entity.ErrPayloadTooLarge,
		},
		{
			name:    "not a receipt",
			input:   ReceiptUploadInput{ReportID: "r1", ExpenseID: "e1", Files: []UploadFile{{FileName: "notes.txt", Content: []byte("just text")}}},
			wantErr: entity.ErrUnsupportedMediaType,
		},
		{
			name: "too many files",
			input: ReceiptUploadInput{ReportID: "r1", ExpenseID: "e1", Files: []UploadFile{
				{FileName: "1.pdf", Content: pdfBytes}, {FileName: "2.pdf", Content: pdfBytes}, {FileName: "3.pdf", Content: pdfBytes},
				{FileName: "4.pdf", Content: pdfBytes}, {FileName: "5.pdf", Content: pdfBytes}, {FileName: "6.pdf", Content: pdfBytes},
			}},
			wantErr: entity.ErrPayloadTooLarge,
		},
		{
			name:    "no files",
			input:   ReceiptUploadInput{ReportID: "r1", ExpenseID: "e1"},
			wantErr: entity.ErrValidation,
		},
		{
			name:    "unknown report",
			input:   ReceiptUploadInput{ReportID: "r404", ExpenseID: "e1", Files: []UploadFile{{FileName: "a.pdf", Content: pdfBytes}}},
			wantErr: entity.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			submit(t, env, "r1")

			_, err := env.receipts.Upload(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)

			receipts, err := env.receipts.List(context.Background(), "r1")
			require.NoError(t, err)
			assert.Empty(t, receipts)
			assert.Zero(t, env.store.Len())
		})
	}
}

func TestReceiptService_Upload_StorageFailure(t *testing.T) {
	env := setupEnv(t)
	submit(t, env, "r1")
	env.store.failUploads = true

	_, err := env.receipts.Upload(context.Background(), ReceiptUploadInput{
		ReportID:  "r1",
		ExpenseID: "e1",
		Files:     []UploadFile{{FileName: "a.pdf", Content: pdfBytes}},
	})
	require.Error(t, err)

	receipts, err := env.receipts.List(context.Background(), "r1")
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestReceiptService_DownloadURL_UnknownReceipt(t *testing.T) {
	env := setupEnv(t)
	submit(t, env, "r1")

	_, err := env.receipts.DownloadURL(context.Background(), "r1", 99)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestReceiptService_ChecksumMatchesFinalizedDraftReceipt(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.draftSvc.Attach(ctx, "r1", "e1", []UploadFile{{FileName: "a.pdf", Content: pdfBytes}})
	require.NoError(t, err)
	report, err := env.submission.Finalize(ctx, finalizeInput("r1", "e1"))
	require.NoError(t, err)
	require.Len(t, report.Receipts, 1)

	direct, err := env.receipts.Upload(ctx, ReceiptUploadInput{
		ReportID:  "r1",
		ExpenseID: "e1",
		Files:     []UploadFile{{FileName: "a.pdf", Content: pdfBytes}},
	})
	require.NoError(t, err)
	require.Len(t, direct, 1)

	assert.Equal(t, report.Receipts[0].Checksum, direct[0].Checksum, "same bytes hash the same on either path")
}
