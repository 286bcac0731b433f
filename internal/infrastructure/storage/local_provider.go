package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"go.uber.org/zap"
)

// ProviderLocal is the filesystem provider name
const ProviderLocal = "local"

// LocalConfig configures the filesystem provider
type LocalConfig struct {
	BaseDir string
	// BaseURL is the public prefix of the file download route
	BaseURL       string
	SigningSecret string
}

// LocalStorage writes receipts below a base directory through port.FileStorage
type LocalStorage struct {
	files       port.FileStorage
	signer      *URLSigner
	baseURL     string
	urlTemplate string
	now         func() time.Time
	logger      *zap.Logger
}

// NewLocalStorage creates the filesystem provider. With a signing secret,
// download links are HMAC-signed; otherwise urlTemplate or BaseURL is used.
func NewLocalStorage(cfg LocalConfig, urlTemplate string, logger *zap.Logger) *LocalStorage {
	s := &LocalStorage{
		files:       NewLocalFileStorage(cfg.BaseDir, logger),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		urlTemplate: urlTemplate,
		now:         time.Now,
		logger:      logger,
	}
	if cfg.SigningSecret != "" {
		s.signer = NewURLSigner(cfg.SigningSecret, cfg.BaseURL)
	}
	return s
}

// Name implements port.ReceiptStorage
func (s *LocalStorage) Name() string { return ProviderLocal }

// Upload implements port.ReceiptStorage
func (s *LocalStorage) Upload(ctx context.Context, in port.UploadInput) (*entity.StoredObject, error) {
	key := ObjectKey(in.ReportID, in.ExpenseID, in.FileName, s.now())
	if err := s.files.Save(ctx, key, in.Content); err != nil {
		return nil, err
	}

	s.logger.Debug("Stored receipt",
		zap.String("key", key),
		zap.Int("size", len(in.Content)))

	return &entity.StoredObject{
		Provider: ProviderLocal,
		Key:      key,
		URL:      s.publicURL(key),
	}, nil
}

// DownloadURL implements port.ReceiptStorage
func (s *LocalStorage) DownloadURL(ctx context.Context, obj entity.StoredObject, ttl time.Duration) (string, error) {
	if !s.files.Exists(ctx, obj.Key) {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, obj.Key)
	}
	if s.signer != nil {
		return s.signer.Sign(obj.Key, ttl), nil
	}
	return s.publicURL(obj.Key), nil
}

// Delete implements port.ReceiptStorage
func (s *LocalStorage) Delete(ctx context.Context, obj entity.StoredObject) error {
	return s.files.Delete(ctx, obj.Key)
}

// Open returns the bytes for key after verifying the link signature.
// Signature checks are skipped when no secret is configured.
func (s *LocalStorage) Open(ctx context.Context, key, expires, signature string) ([]byte, error) {
	if s.signer != nil {
		if err := s.signer.Verify(key, expires, signature); err != nil {
			return nil, err
		}
	}
	content, err := s.files.Read(ctx, key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return content, err
}

func (s *LocalStorage) publicURL(key string) string {
	if s.urlTemplate != "" {
		return BuildObjectURL(s.urlTemplate, key)
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return key
}

var _ port.ReceiptStorage = (*LocalStorage)(nil)
