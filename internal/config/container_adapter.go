package config

import (
	"github.com/garyjia/expense-approval/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		DraftStore: container.DraftStoreConfig{
			SQLitePath: c.DraftStore.SQLitePath,
			Root:       c.DraftStore.Root,
		},
		Storage: container.StorageConfig{
			Provider:           c.Storage.Provider,
			Timeout:            c.Storage.Timeout,
			URLTTL:             c.Storage.URLTTL,
			ExportURLTTL:       c.Export.URLTTL,
			PublicURLTemplate:  c.Storage.PublicURLTemplate,
			LocalBaseDir:       c.Storage.Local.BaseDir,
			LocalBaseURL:       c.Storage.Local.BaseURL,
			LocalSigningSecret: c.Storage.Local.SigningSecret,
			GCSBucket:          c.Storage.GCS.Bucket,
			GCSCredentialsJSON: c.Storage.GCS.CredentialsJSON,
			GCSCredentialsFile: c.Storage.GCS.CredentialsFile,
		},
		Submission: container.SubmissionConfig{
			MaxFiles:          c.Submission.MaxFiles,
			MaxFileBytes:      c.Submission.MaxFileBytes,
			AllowedTypes:      append([]string(nil), c.Submission.AllowedTypes...),
			UploadConcurrency: c.Submission.UploadConcurrency,
		},
		Lock: container.LockConfig{
			Backend:       c.Lock.Backend,
			TTL:           c.Lock.TTL,
			RedisAddr:     c.Lock.RedisAddr,
			RedisPassword: c.Lock.RedisPassword,
			RedisDB:       c.Lock.RedisDB,
			KeyPrefix:     c.Lock.KeyPrefix,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}
}
