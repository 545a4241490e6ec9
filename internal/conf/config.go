// Package conf provides configuration management for PlantDoc.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/plantdoc/internal/logger"
)

// Settings holds the complete runtime configuration.
type Settings struct {
	Debug bool

	Server     ServerSettings
	Database   DatabaseSettings
	Models     ModelSettings
	Image      ImageSettings
	Prediction PredictionSettings
	Uploads    UploadSettings
	Logging    LogSettings
	Telemetry  TelemetrySettings
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host            string
	Port            int
	BodyLimit       string        // echo body limit, e.g. "16M"
	ShutdownTimeout time.Duration // grace period for in-flight requests
	CORSOrigins     []string
}

// Address returns host:port for the listener.
func (s ServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseSettings configures the reference data store.
type DatabaseSettings struct {
	Type          string // sqlite, mysql or postgres
	DSN           string // connection string for mysql/postgres, or a sqlite file path
	Path          string // sqlite file path used when DSN is empty
	MaxOpenConns  int
	MaxIdleConns  int
	SlowThreshold time.Duration
	SeedFile      string // optional YAML seed applied by migrate, path or URL
}

// ModelSettings holds the label catalog and inference options.
type ModelSettings struct {
	Dir     string       // base directory for relative artifact paths
	Threads int          // interpreter threads per classifier, 0 = auto
	XNNPACK bool         // use the XNNPACK delegate for TFLite models
	ONNXLib string       // onnxruntime shared library, empty = system default
	Plants  []PlantModel // the label catalog
}

// ImageSettings is the fixed classifier input size shared by every plant.
type ImageSettings struct {
	Width  int
	Height int
}

// PredictionSettings controls the ranked output of /uploadfile.
type PredictionSettings struct {
	TopK     int
	CacheTTL time.Duration // 0 disables the result cache
}

// UploadSettings controls persisting uploaded images as training data.
type UploadSettings struct {
	Enabled   bool
	Path      string
	MinFreeMB int // uploads are skipped below this much free disk space
}

// LogSettings configures the central logger.
type LogSettings struct {
	Level        string
	Format       string
	File         string
	ModuleLevels map[string]string
}

// LoggerConfig converts the settings into the logger package configuration.
func (l LogSettings) LoggerConfig() *logger.LoggingConfig {
	cfg := logger.DefaultConfig()
	if l.Level != "" {
		cfg.DefaultLevel = l.Level
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}
	cfg.File = l.File
	cfg.ModuleLevels = l.ModuleLevels
	return cfg
}

// TelemetrySettings configures optional Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from defaults, config file, .env file,
// environment and bound command line flags, in increasing precedence.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	settings, err := loadWith(viper.GetViper(), true)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

// loadWith fills v with defaults and env bindings, optionally reads the
// config file, then unmarshals and validates.
func loadWith(v *viper.Viper, readFile bool) (*Settings, error) {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if readFile {
		if err := readConfigFile(v); err != nil {
			return nil, err
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	settings.Database.Type = strings.ToLower(strings.TrimSpace(settings.Database.Type))

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

func readConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Info("no config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Info("loaded config file", logger.String("path", v.ConfigFileUsed()))
	return nil
}

// Setting returns the most recently loaded settings, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
