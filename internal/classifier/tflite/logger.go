package tflite

import (
	"sync"

	"github.com/tphakala/plantdoc/internal/logger"
)

var (
	pkgLogger logger.Logger
	initOnce  sync.Once
)

// GetLogger returns the TFLite backend logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		pkgLogger = logger.Global().Module("classifier").Module("tflite")
	})
	return pkgLogger
}
