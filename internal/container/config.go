// Package container provides dependency injection and lifecycle management
// for the expense approval system following Clean Architecture principles.
package container

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// DraftStore configuration
	DraftStore DraftStoreConfig

	// Storage configuration
	Storage StorageConfig

	// Submission configuration
	Submission SubmissionConfig

	// Lock configuration
	Lock LockConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// DraftStoreConfig holds the staging area locations.
type DraftStoreConfig struct {
	// SQLitePath is the primary strategy's database file
	SQLitePath string

	// Root is the directory used by the file tree fallback
	Root string
}

// StorageConfig holds receipt storage settings.
type StorageConfig struct {
	// Provider is one of local, gcs, memory
	Provider string

	// Timeout bounds each provider call
	Timeout time.Duration

	// URLTTL is the lifetime of links issued for single receipts
	URLTTL time.Duration

	// ExportURLTTL is the lifetime of links written into exports
	ExportURLTTL time.Duration

	// PublicURLTemplate overrides generated links, e.g. "https://cdn.example.com/{objectKey}"
	PublicURLTemplate string

	// Local provider settings
	LocalBaseDir       string
	LocalBaseURL       string
	LocalSigningSecret string

	// GCS provider settings
	GCSBucket          string
	GCSCredentialsJSON string
	GCSCredentialsFile string
}

// SubmissionConfig holds upload limits and finalize tuning.
type SubmissionConfig struct {
	MaxFiles          int
	MaxFileBytes      int64
	AllowedTypes      []string
	UploadConcurrency int
}

// LockConfig selects the finalize lock backend.
type LockConfig struct {
	// Backend is local or redis
	Backend string

	// TTL bounds how long a finalize may hold its lock
	TTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Validate checks that the container has what it needs to start.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.DraftStore.SQLitePath == "" && c.DraftStore.Root == "" {
		errs = append(errs, errors.New("draft store needs a sqlite path or a root directory"))
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		errs = append(errs, errors.New("gcs bucket is required"))
	}
	if c.Lock.Backend == "redis" && c.Lock.RedisAddr == "" {
		errs = append(errs, errors.New("redis address is required for the redis lock backend"))
	}
	if c.Lock.Backend != "" && c.Lock.Backend != "local" && c.Lock.Backend != "redis" {
		errs = append(errs, fmt.Errorf("unknown lock backend %q", c.Lock.Backend))
	}

	return errors.Join(errs...)
}
