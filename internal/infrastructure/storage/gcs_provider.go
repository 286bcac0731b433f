package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ProviderGCS is the Google Cloud Storage provider name
const ProviderGCS = "gcs"

// GCSConfig configures the Cloud Storage provider
type GCSConfig struct {
	Bucket string
	// CredentialsJSON or CredentialsFile hold a service-account key; when both
	// are empty Application Default Credentials are used.
	CredentialsJSON string
	CredentialsFile string
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// GCSStorage stores receipts as Cloud Storage objects
type GCSStorage struct {
	client      *gcs.Client
	bucket      string
	urlTemplate string
	accessID    string
	privateKey  []byte
	now         func() time.Time
	logger      *zap.Logger
}

// NewGCSStorage opens a client for cfg.Bucket
func NewGCSStorage(ctx context.Context, cfg GCSConfig, urlTemplate string, logger *zap.Logger) (*GCSStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	credJSON := strings.TrimSpace(cfg.CredentialsJSON)
	if credJSON == "" && cfg.CredentialsFile != "" {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read gcs credentials file: %w", err)
		}
		credJSON = string(raw)
	}

	var opts []option.ClientOption
	s := &GCSStorage{
		bucket:      cfg.Bucket,
		urlTemplate: urlTemplate,
		now:         time.Now,
		logger:      logger,
	}

	if credJSON != "" {
		var key serviceAccountKey
		if err := json.Unmarshal([]byte(credJSON), &key); err != nil {
			return nil, fmt.Errorf("invalid gcs credentials: %w", err)
		}
		s.accessID = key.ClientEmail
		s.privateKey = []byte(strings.ReplaceAll(key.PrivateKey, "\\n", "\n"))
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	s.client = client

	logger.Info("GCS receipt storage ready",
		zap.String("bucket", cfg.Bucket),
		zap.Bool("explicit_signer", s.accessID != ""))
	return s, nil
}

// Name implements port.ReceiptStorage
func (s *GCSStorage) Name() string { return ProviderGCS }

// Upload implements port.ReceiptStorage
func (s *GCSStorage) Upload(ctx context.Context, in port.UploadInput) (*entity.StoredObject, error) {
	key := ObjectKey(in.ReportID, in.ExpenseID, in.FileName, s.now())

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = in.ContentType
	w.Metadata = map[string]string{
		"report-id":  in.ReportID,
		"expense-id": in.ExpenseID,
	}

	if _, err := w.Write(in.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish upload %s: %w", key, err)
	}

	obj := &entity.StoredObject{Provider: ProviderGCS, Bucket: s.bucket, Key: key}
	if s.urlTemplate != "" {
		obj.URL = BuildObjectURL(s.urlTemplate, key)
	} else {
		obj.URL = fmt.Sprintf("gs://%s/%s", s.bucket, key)
	}
	return obj, nil
}

// DownloadURL implements port.ReceiptStorage. A public template wins over signing.
func (s *GCSStorage) DownloadURL(ctx context.Context, obj entity.StoredObject, ttl time.Duration) (string, error) {
	if s.urlTemplate != "" {
		return BuildObjectURL(s.urlTemplate, obj.Key), nil
	}

	bucket := obj.Bucket
	if bucket == "" {
		bucket = s.bucket
	}
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: s.now().Add(ttl),
	}

	if s.accessID != "" && len(s.privateKey) > 0 {
		opts.GoogleAccessID = s.accessID
		opts.PrivateKey = s.privateKey
		return gcs.SignedURL(bucket, obj.Key, opts)
	}

	// Let the client derive the signer from its own credentials
	return s.client.Bucket(bucket).SignedURL(obj.Key, opts)
}

// Delete implements port.ReceiptStorage
func (s *GCSStorage) Delete(ctx context.Context, obj entity.StoredObject) error {
	bucket := obj.Bucket
	if bucket == "" {
		bucket = s.bucket
	}
	err := s.client.Bucket(bucket).Object(obj.Key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

// Close releases the client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

var _ port.ReceiptStorage = (*GCSStorage)(nil)
