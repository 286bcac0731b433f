package container

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/infrastructure/draftstore"
	"github.com/garyjia/expense-approval/internal/infrastructure/export"
	"github.com/garyjia/expense-approval/internal/infrastructure/lock"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/internal/infrastructure/storage"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Database       *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds the receipt provider and, for the local provider,
// the handle that serves signed downloads.
type StorageBundle struct {
	Receipts port.ReceiptStorage
	Files    *storage.LocalStorage
	Policy   storage.Policy
}

// LockBundle holds the finalize locker and its redis client, if any.
type LockBundle struct {
	Locker port.Locker
	Redis  *redis.Client
}

// ServiceDeps holds everything application services are built from.
type ServiceDeps struct {
	Repositories *RepositoryBundle
	TxManager    port.TransactionManager
	Storage      *StorageBundle
	Drafts       service.DraftStore
	Locker       port.Locker
	Config       *Config
	Logger       *zap.Logger
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Database:       db,
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Report:   repository.NewReportRepository(sqlDB, logger),
		Expense:  repository.NewExpenseRepository(sqlDB, logger),
		Receipt:  repository.NewReceiptRepository(sqlDB, logger),
		Approval: repository.NewApprovalRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage builds the configured receipt provider and upload policy.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, submission *SubmissionConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil || submission == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	receipts, err := storage.New(ctx, storage.Config{
		Provider:          cfg.Provider,
		Timeout:           cfg.Timeout,
		PublicURLTemplate: cfg.PublicURLTemplate,
		Local: storage.LocalConfig{
			BaseDir:       cfg.LocalBaseDir,
			BaseURL:       cfg.LocalBaseURL,
			SigningSecret: cfg.LocalSigningSecret,
		},
		GCS: storage.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsJSON: cfg.GCSCredentialsJSON,
			CredentialsFile: cfg.GCSCredentialsFile,
		},
	}, utils.WithComponent(logger, "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt storage: %w", err)
	}

	bundle := &StorageBundle{
		Receipts: receipts,
		Policy:   storage.NewPolicy(submission.MaxFileBytes, submission.MaxFiles, submission.AllowedTypes),
	}
	if local, ok := storage.Unwrap(receipts).(*storage.LocalStorage); ok {
		bundle.Files = local
	}
	return bundle, nil
}

// ProvideDraftStore opens the staging area; the strategy is chosen on first use.
func ProvideDraftStore(cfg *DraftStoreConfig, logger *zap.Logger) (*draftstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("draft store config is required")
	}
	logger = utils.WithComponent(logger, "draftstore")

	var candidates []port.DraftBackend
	if cfg.SQLitePath != "" {
		candidates = append(candidates, draftstore.NewSQLiteBackend(cfg.SQLitePath, logger))
	}
	if cfg.Root != "" {
		candidates = append(candidates, draftstore.NewFileTreeBackend(cfg.Root, logger))
	}
	return draftstore.New(logger, candidates...), nil
}

// ProvideLocker creates the finalize locker for the configured backend.
func ProvideLocker(ctx context.Context, cfg *LockConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lock config is required")
	}

	if cfg.Backend != "redis" {
		return &LockBundle{Locker: lock.NewLocalLocker()}, nil
	}

	rdb, err := lock.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	logger.Info("Redis lock backend connected", zap.String("addr", cfg.RedisAddr))
	return &LockBundle{
		Locker: lock.NewRedisLocker(rdb, cfg.KeyPrefix, utils.WithComponent(logger, "lock")),
		Redis:  rdb,
	}, nil
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repositories == nil || deps.Storage == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	repos := service.Repositories{
		Reports:   deps.Repositories.Report,
		Expenses:  deps.Repositories.Expense,
		Receipts:  deps.Repositories.Receipt,
		Approvals: deps.Repositories.Approval,
	}
	cfg := deps.Config

	return &ServiceBundle{
		Submission: service.NewSubmissionService(repos, deps.TxManager, deps.Storage.Receipts, deps.Drafts, deps.Locker,
			service.SubmissionConfig{
				UploadConcurrency: cfg.Submission.UploadConcurrency,
				LockTTL:           cfg.Lock.TTL,
			}, logger),
		Receipt:  service.NewReceiptService(repos, deps.TxManager, deps.Storage.Receipts, deps.Storage.Policy, cfg.Storage.URLTTL, logger),
		Draft:    service.NewDraftService(deps.Drafts, deps.Storage.Policy, logger),
		Approval: service.NewApprovalService(repos, deps.TxManager, logger),
		Export: service.NewExportService(repos, deps.Storage.Receipts,
			export.NewArchiveWriter(utils.WithComponent(deps.Logger, "export")), cfg.Storage.ExportURLTTL, logger),
	}, nil
}

// closeProvider releases provider clients that hold connections.
func closeProvider(s port.ReceiptStorage) error {
	if c, ok := storage.Unwrap(s).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
