package datastore

import (
	"github.com/jackc/pgx/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
)

// PostgresStore implements Interface for PostgreSQL.
type PostgresStore struct {
	DataStore
	Settings *conf.DatabaseSettings
}

// Open connects to the PostgreSQL server. The DSN is parsed up front so
// malformed settings fail as configuration errors.
func (store *PostgresStore) Open() error {
	cfg, err := pgx.ParseConfig(store.Settings.DSN)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("backend", conf.DatabasePostgres).
			Build()
	}

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: store.Settings.DSN}), gormConfig(store.Settings))
	if err != nil {
		return dbError(err, "open", "backend", conf.DatabasePostgres)
	}
	if err := configurePool(db, store.Settings); err != nil {
		return dbError(err, "open", "backend", conf.DatabasePostgres)
	}

	store.DB = db
	store.log.Info("opened database",
		logger.String("backend", conf.DatabasePostgres),
		logger.String("host", cfg.Host),
		logger.Int("port", int(cfg.Port)),
		logger.String("database", cfg.Database))
	return nil
}

// Close closes all pooled connections.
func (store *PostgresStore) Close() error {
	err := closeDB(store.DB)
	store.DB = nil
	return err
}
