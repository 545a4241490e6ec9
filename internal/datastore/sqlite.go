package datastore

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
)

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.DatabaseSettings
}

// sqlitePath returns the database file path. The DSN wins over Path.
func sqlitePath(settings *conf.DatabaseSettings) string {
	path := settings.DSN
	if path == "" {
		path = settings.Path
	}
	return strings.TrimPrefix(path, "sqlite://")
}

// sqliteDSN enables foreign keys so picture rows follow their disease.
func sqliteDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file::memory:") {
		return "file::memory:?cache=shared&_foreign_keys=on"
	}
	if strings.Contains(path, "?") {
		return path + "&_foreign_keys=on"
	}
	return path + "?_foreign_keys=on"
}

// Open opens the database file, creating its directory if needed.
func (store *SQLiteStore) Open() error {
	path := sqlitePath(store.Settings)
	if path == "" {
		return errors.Newf("sqlite database path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if dir := filepath.Dir(path); dir != "." && !strings.Contains(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_dir").
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig(store.Settings))
	if err != nil {
		return dbError(err, "open", "backend", conf.DatabaseSQLite)
	}

	// One connection: SQLite has a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open", "backend", conf.DatabaseSQLite)
	}
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	store.log.Info("opened database",
		logger.String("backend", conf.DatabaseSQLite),
		logger.String("path", path))
	return nil
}

// Close closes the database file.
func (store *SQLiteStore) Close() error {
	err := closeDB(store.DB)
	store.DB = nil
	return err
}
