package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each provider call when none is configured
const DefaultTimeout = 30 * time.Second

// Config selects and configures the receipt storage provider
type Config struct {
	Provider          string
	Timeout           time.Duration
	PublicURLTemplate string
	Local             LocalConfig
	GCS               GCSConfig
}

// New constructs the configured provider wrapped with timeouts and error
// classification. The container builds it once and passes it to services.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (port.ReceiptStorage, error) {
	var (
		inner port.ReceiptStorage
		err   error
	)

	switch cfg.Provider {
	case ProviderMemory:
		inner = NewMemoryStorage()
	case ProviderLocal, "":
		inner = NewLocalStorage(cfg.Local, cfg.PublicURLTemplate, logger)
	case ProviderGCS:
		inner, err = NewGCSStorage(ctx, cfg.GCS, cfg.PublicURLTemplate, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}

	logger.Info("Receipt storage provider selected", zap.String("provider", inner.Name()))
	return WithTimeout(inner, cfg.Timeout), nil
}

// guardedStorage applies a per-call timeout and marks failures as ErrStorage
type guardedStorage struct {
	inner   port.ReceiptStorage
	timeout time.Duration
}

// WithTimeout wraps a provider so every call carries timeout and every
// failure matches entity.ErrStorage
func WithTimeout(inner port.ReceiptStorage, timeout time.Duration) port.ReceiptStorage {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &guardedStorage{inner: inner, timeout: timeout}
}

func (g *guardedStorage) Name() string { return g.inner.Name() }

func (g *guardedStorage) Upload(ctx context.Context, in port.UploadInput) (*entity.StoredObject, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	obj, err := g.inner.Upload(ctx, in)
	if err != nil {
		return nil, classify("upload", err)
	}
	return obj, nil
}

func (g *guardedStorage) DownloadURL(ctx context.Context, obj entity.StoredObject, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	u, err := g.inner.DownloadURL(ctx, obj, ttl)
	if err != nil {
		return "", classify("download url", err)
	}
	return u, nil
}

func (g *guardedStorage) Delete(ctx context.Context, obj entity.StoredObject) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.inner.Delete(ctx, obj); err != nil {
		return classify("delete", err)
	}
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, entity.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", entity.ErrStorage, op, err)
}

// Unwrap returns the provider behind any WithTimeout wrapper
func Unwrap(s port.ReceiptStorage) port.ReceiptStorage {
	for {
		g, ok := s.(*guardedStorage)
		if !ok {
			return s
		}
		s = g.inner
	}
}
