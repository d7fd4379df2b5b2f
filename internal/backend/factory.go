package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"roomies/internal/amqp"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
	"roomies/internal/services"
	"roomies/internal/sheets"
	gsheet "roomies/internal/sheets/google"
	sheetmem "roomies/internal/sheets/memory"
	"roomies/internal/storage"
	"roomies/internal/storage/memory"
)

// MembersFile is read by the memory backend from its data directory.
const MembersFile = "members.txt"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *applog.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger, m *metrics.Metrics) *DefaultFactory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(applog.ComponentBackend),
		metrics: m,
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend opens the configured store, connects the optional event
// publisher and seeds default members into an empty ledger.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(config)
	case MemoryBackend:
		store = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	publisher := f.createPublisher(config)

	opts := services.Options{
		Metrics:        f.metrics,
		Logger:         f.logger,
		MemberCacheTTL: config.MemberCacheTTL,
	}
	// a typed nil must not reach the interface
	if publisher != nil {
		opts.Publisher = publisher
	}
	svc := services.NewLedgerService(store, opts)

	seeded, err := svc.EnsureDefaultMembers(ctx, config.DefaultMembers)
	if err != nil {
		_ = svc.Close()
		if publisher != nil {
			_ = publisher.Close()
		}
		return nil, fmt.Errorf("seed default members: %w", err)
	}
	if seeded > 0 {
		f.logger.InfoContext(ctx, "Seeded default members", "count", seeded)
	}

	return &BackendResult{
		Service:   svc,
		Store:     store,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				errs = append(errs, publisher.Close())
			}
			errs = append(errs, svc.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (storage.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, "schema_version", repo.SchemaVersion())
	return repo, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) storage.Store {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	path := filepath.Join(dataDir, MembersFile)
	f.logger.Info("Initialized memory backend", "members_file", path)
	return memory.NewFromFile(path)
}

// createPublisher connects to the broker when one is configured. The ledger
// works without it, so failures only log.
func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// CreateExporter returns the Google Sheets exporter when a spreadsheet is
// configured and the in-process exporter otherwise.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.InfoContext(ctx, "No spreadsheet configured, exporting to memory")
		return sheetmem.New(), nil
	}
	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		BatchSize:       config.SyncBatchSize,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets exporter",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return exporter, nil
}
