package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	DraftStore DraftStoreConfig `mapstructure:"draft_store"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Lock       LockConfig       `mapstructure:"lock"`
	Export     ExportConfig     `mapstructure:"export"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DraftStoreConfig holds the local staging area locations
type DraftStoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
	Root       string `mapstructure:"root"`
}

// StorageConfig selects and configures the receipt storage provider
type StorageConfig struct {
	Provider          string        `mapstructure:"provider"`
	Timeout           time.Duration `mapstructure:"timeout"`
	URLTTL            time.Duration `mapstructure:"url_ttl"`
	PublicURLTemplate string        `mapstructure:"public_url_template"`
	Local             LocalStorage  `mapstructure:"local"`
	GCS               GCSStorage    `mapstructure:"gcs"`
}

// LocalStorage holds settings for the filesystem provider
type LocalStorage struct {
	BaseDir       string `mapstructure:"base_dir"`
	BaseURL       string `mapstructure:"base_url"`
	SigningSecret string `mapstructure:"signing_secret"`
}

// GCSStorage holds settings for the Google Cloud Storage provider
type GCSStorage struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// SubmissionConfig holds upload limits and finalize tuning
type SubmissionConfig struct {
	MaxFiles          int      `mapstructure:"max_files"`
	MaxFileBytes      int64    `mapstructure:"max_file_bytes"`
	AllowedTypes      []string `mapstructure:"allowed_types"`
	UploadConcurrency int      `mapstructure:"upload_concurrency"`
}

// LockConfig selects how finalize attempts are serialized
type LockConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

// ExportConfig holds export settings
type ExportConfig struct {
	URLTTL time.Duration `mapstructure:"url_ttl"`
	// MaxBytes bounds the archive held in memory per export request
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// A .env file next to the config file, or in the working directory, is
// applied to the process environment first. An empty configPath runs on
// defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(configPath); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EXPENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := gotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/expenses.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Draft store defaults
	v.SetDefault("draft_store.sqlite_path", "data/drafts.db")
	v.SetDefault("draft_store.root", "data/drafts")

	// Storage defaults
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.timeout", 30*time.Second)
	v.SetDefault("storage.url_ttl", 7*24*time.Hour)
	v.SetDefault("storage.local.base_dir", "data/receipts")
	v.SetDefault("storage.local.base_url", "/api/receipts/files")

	// Submission defaults
	v.SetDefault("submission.max_files", 5)
	v.SetDefault("submission.max_file_bytes", 10<<20)
	v.SetDefault("submission.upload_concurrency", 4)

	// Lock defaults
	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", 5*time.Minute)
	v.SetDefault("lock.key_prefix", "expense:lock:")

	// Export defaults
	v.SetDefault("export.url_ttl", 7*24*time.Hour)
	v.SetDefault("export.max_bytes", 256<<20)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("storage.local.signing_secret", "RECEIPT_SIGNING_SECRET")
	_ = v.BindEnv("storage.gcs.bucket", "GCS_BUCKET")
	_ = v.BindEnv("storage.gcs.credentials_json", "GCS_CREDENTIALS_JSON")
	_ = v.BindEnv("storage.gcs.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("lock.redis_addr", "REDIS_ADDRESS")
	_ = v.BindEnv("lock.redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.DraftStore.SQLitePath == "" && c.DraftStore.Root == "" {
		errs = append(errs, errors.New("draft_store needs sqlite_path or root"))
	}

	switch c.Storage.Provider {
	case "memory":
	case "local":
		if c.Storage.Local.BaseDir == "" {
			errs = append(errs, errors.New("storage.local.base_dir is required"))
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			errs = append(errs, errors.New("storage.gcs.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.provider %q must be one of local, gcs, memory", c.Storage.Provider))
	}

	if c.Submission.MaxFiles <= 0 {
		errs = append(errs, errors.New("submission.max_files must be positive"))
	}
	if c.Submission.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("submission.max_file_bytes must be positive"))
	}
	if c.Submission.UploadConcurrency <= 0 {
		errs = append(errs, errors.New("submission.upload_concurrency must be positive"))
	}

	if c.Export.MaxBytes <= 0 {
		errs = append(errs, errors.New("export.max_bytes must be positive"))
	}

	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Lock.RedisAddr == "" {
			errs = append(errs, errors.New("lock.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.backend %q must be local or redis", c.Lock.Backend))
	}

	return errors.Join(errs...)
}
