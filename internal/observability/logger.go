package observability

import "github.com/tphakala/plantdoc/internal/logger"

// GetLogger returns the observability logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
