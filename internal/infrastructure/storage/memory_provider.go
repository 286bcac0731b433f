package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ProviderMemory is the in-process provider name
const ProviderMemory = "memory"

type memoryObject struct {
	contentType string
	content     []byte
}

// MemoryStorage keeps receipts in a map. Used in tests and single-process demos.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryStorage creates an empty in-memory provider
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// Name implements port.ReceiptStorage
func (s *MemoryStorage) Name() string { return ProviderMemory }

// Upload implements port.ReceiptStorage
func (s *MemoryStorage) Upload(ctx context.Context, in port.UploadInput) (*entity.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := ObjectKey(in.ReportID, in.ExpenseID, in.FileName, s.now())
	content := make([]byte, len(in.Content))
	copy(content, in.Content)

	s.mu.Lock()
	s.objects[key] = memoryObject{contentType: in.ContentType, content: content}
	s.mu.Unlock()

	return &entity.StoredObject{
		Provider: ProviderMemory,
		Key:      key,
		URL:      "memory://" + key,
	}, nil
}

// DownloadURL implements port.ReceiptStorage
func (s *MemoryStorage) DownloadURL(ctx context.Context, obj entity.StoredObject, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[obj.Key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, obj.Key)
	}
	return fmt.Sprintf("memory://%s?expires=%d", obj.Key, s.now().Add(ttl).Unix()), nil
}

// Delete implements port.ReceiptStorage
func (s *MemoryStorage) Delete(ctx context.Context, obj entity.StoredObject) error {
	s.mu.Lock()
	delete(s.objects, obj.Key)
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored bytes
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(obj.content))
	copy(out, obj.content)
	return out, true
}

// Len returns the number of stored objects
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ port.ReceiptStorage = (*MemoryStorage)(nil)
