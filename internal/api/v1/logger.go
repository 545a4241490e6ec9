package api

import (
	"sync"

	"github.com/tphakala/plantdoc/internal/logger"
)

var (
	pkgLogger logger.Logger
	initOnce  sync.Once
)

// GetLogger returns the api logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		pkgLogger = logger.Global().Module("api")
	})
	return pkgLogger
}
