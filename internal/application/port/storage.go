package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// UploadInput is one receipt file headed for the storage provider.
type UploadInput struct {
	ReportID    string
	ExpenseID   string
	FileName    string
	ContentType string
	Content     []byte
}

// ReceiptStorage persists receipt bytes and issues download links.
// Implementations are interchangeable; only the URL shape differs.
type ReceiptStorage interface {
	// Name is the provider identifier recorded on receipts
	Name() string

	Upload(ctx context.Context, in UploadInput) (*entity.StoredObject, error)

	// DownloadURL returns a link valid for at least ttl
	DownloadURL(ctx context.Context, obj entity.StoredObject, ttl time.Duration) (string, error)

	// Delete removes an object; missing objects are not an error
	Delete(ctx context.Context, obj entity.StoredObject) error
}

// FileStorage defines byte-level file operations relative to a base directory
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// FolderManager defines folder management operations
type FolderManager interface {
	CreateFolder(ctx context.Context, name string) (string, error)
	GetPath(name string) string
	Exists(name string) bool
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, name string) ([]string, error)
	SanitizeName(name string) string
}

// DraftBackend is one local persistence strategy for staged receipts.
// Every strategy must behave identically behind draftstore.Store.
type DraftBackend interface {
	// Name identifies the strategy in logs
	Name() string

	// Available is the capability check run once when the store is opened
	Available(ctx context.Context) error

	// Replace removes the prior generation for (draftID, expenseID) and writes blobs
	Replace(ctx context.Context, draftID, expenseID string, blobs []entity.DraftBlob) error

	List(ctx context.Context, draftID string) (map[string][]entity.DraftReceiptMeta, error)
	Get(ctx context.Context, draftID, expenseID string, ids []string) ([]entity.DraftBlob, error)

	// Remove deletes the given ids, or every receipt of the expense when ids is empty
	Remove(ctx context.Context, draftID, expenseID string, ids []string) error

	Clear(ctx context.Context, draftID string) error
	Close() error
}

// UploadPolicy enforces receipt size, count, and media type limits
type UploadPolicy interface {
	CheckCount(n int) error
	CheckSize(fileName string, size int64) error

	// Check returns the content type to store for the file
	Check(fileName, declaredType string, content []byte) (string, error)
}
