package datastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
)

// Interface is the reference data store used by the request handlers.
// Reads signal absence with ErrNotFound.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error
	CreateSchema(ctx context.Context) error
	Seed(ctx context.Context, data *SeedData) error

	AllPlants(ctx context.Context) ([]string, error)
	DiseasesForPlant(ctx context.Context, plant string, fetch PictureFetch) ([]DiseaseSummary, error)
	DiseaseDetail(ctx context.Context, disease, plant string) (*DiseaseDetail, error)
	// Deprecated: disease names are not unique across plants. Use DiseaseDetail.
	DiseaseDetailByName(ctx context.Context, disease string) (*DiseaseDetail, error)
	AllNews(ctx context.Context) ([]NewsItem, error)
	AddNews(ctx context.Context, title, body string) (*NewsItem, error)
}

// MetricsRecorder receives per-operation timings. A nil recorder is allowed.
type MetricsRecorder interface {
	RecordOperation(operation string, durationSeconds float64, resultSize int, err error)
}

// DataStore implements the query side of Interface on a GORM database.
// Backend stores embed it and provide Open and Close.
type DataStore struct {
	DB      *gorm.DB
	metrics MetricsRecorder
	log     logger.Logger
}

// Option configures a store created by New.
type Option func(*DataStore)

// WithMetrics records operation metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(ds *DataStore) { ds.metrics = m }
}

// New returns the store selected by database.type. An empty type is
// inferred from the DSN scheme and defaults to SQLite.
func New(settings *conf.DatabaseSettings, opts ...Option) (Interface, error) {
	base := DataStore{log: GetLogger()}
	for _, opt := range opts {
		opt(&base)
	}

	switch storeType(settings) {
	case conf.DatabaseSQLite:
		return &SQLiteStore{DataStore: base, Settings: settings}, nil
	case conf.DatabaseMySQL:
		return &MySQLStore{DataStore: base, Settings: settings}, nil
	case conf.DatabasePostgres:
		return &PostgresStore{DataStore: base, Settings: settings}, nil
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func storeType(settings *conf.DatabaseSettings) string {
	if t := strings.ToLower(settings.Type); t != "" {
		return t
	}
	dsn := strings.ToLower(settings.DSN)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return conf.DatabasePostgres
	case strings.HasPrefix(dsn, "mysql://"), strings.Contains(dsn, "@tcp("):
		return conf.DatabaseMySQL
	default:
		return conf.DatabaseSQLite
	}
}

// configurePool applies connection limits to the underlying sql.DB.
func configurePool(db *gorm.DB, settings *conf.DatabaseSettings) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if settings.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

// gormConfig returns the GORM configuration shared by all backends.
func gormConfig(settings *conf.DatabaseSettings) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger(), settings.SlowThreshold),
		TranslateError: true,
	}
}

// closeDB closes the generic database object behind db.
func closeDB(db *gorm.DB) error {
	if db == nil {
		return ErrNotConnected
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
