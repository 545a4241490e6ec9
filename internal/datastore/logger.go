package datastore

import (
	"sync"

	"github.com/tphakala/plantdoc/internal/logger"
)

var (
	pkgLogger logger.Logger
	initOnce  sync.Once
)

// GetLogger returns the datastore logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		pkgLogger = logger.Global().Module("datastore")
	})
	return pkgLogger
}
