package conf

import "github.com/tphakala/plantdoc/internal/logger"

// GetLogger returns the config package logger. It is fetched from the
// global logger on each call since the central logger is installed after
// configuration is loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
