package datastore

import (
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.DatabaseSettings
}

// mysqlDSN parses dsn and forces the options the store relies on. A
// mysql:// prefix is accepted and stripped.
func mysqlDSN(dsn string) (*mysqldriver.Config, error) {
	cfg, err := mysqldriver.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("backend", conf.DatabaseMySQL).
			Build()
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg, nil
}

// Open connects to the MySQL server.
func (store *MySQLStore) Open() error {
	cfg, err := mysqlDSN(store.Settings.DSN)
	if err != nil {
		return err
	}

	db, err := gorm.Open(mysql.New(mysql.Config{DSN: cfg.FormatDSN(), DSNConfig: cfg}), gormConfig(store.Settings))
	if err != nil {
		return dbError(err, "open", "backend", conf.DatabaseMySQL)
	}
	if err := configurePool(db, store.Settings); err != nil {
		return dbError(err, "open", "backend", conf.DatabaseMySQL)
	}

	store.DB = db
	store.log.Info("opened database",
		logger.String("backend", conf.DatabaseMySQL),
		logger.String("address", cfg.Addr),
		logger.String("database", cfg.DBName))
	return nil
}

// Close closes all pooled connections.
func (store *MySQLStore) Close() error {
	err := closeDB(store.DB)
	store.DB = nil
	return err
}
