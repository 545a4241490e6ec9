package onnx

import (
	"sync"

	"github.com/tphakala/plantdoc/internal/logger"
)

var (
	pkgLogger logger.Logger
	initOnce  sync.Once
)

// GetLogger returns the ONNX backend logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		pkgLogger = logger.Global().Module("classifier").Module("onnx")
	})
	return pkgLogger
}
