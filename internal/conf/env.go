// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tphakala/plantdoc/internal/logger"
)

// envBinding holds metadata for an environment variable binding
type envBinding struct {
	ConfigKey string
	EnvVars   []string // first match wins
	Validate  func(string) error
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", []string{"PLANTDOC_DEBUG"}, validateEnvBool},

		{"server.host", []string{"PLANTDOC_SERVER_HOST"}, nil},
		{"server.port", []string{"PLANTDOC_SERVER_PORT"}, validateEnvPort},

		{"database.type", []string{"PLANTDOC_DATABASE_TYPE"}, validateEnvDatabaseType},
		{"database.dsn", []string{"PLANTDOC_DATABASE_DSN", "DB_CONNECTION_STRING"}, nil},
		{"database.path", []string{"PLANTDOC_DATABASE_PATH"}, nil},
		{"database.seedfile", []string{"PLANTDOC_DATABASE_SEEDFILE"}, nil},

		{"models.dir", []string{"PLANTDOC_MODELS_DIR"}, nil},
		{"models.threads", []string{"PLANTDOC_MODELS_THREADS"}, validateEnvNonNegativeInt},
		{"models.xnnpack", []string{"PLANTDOC_MODELS_XNNPACK"}, validateEnvBool},
		{"models.onnxlib", []string{"PLANTDOC_MODELS_ONNXLIB", "ONNXRUNTIME_LIB"}, nil},

		{"image.width", []string{"PLANTDOC_IMAGE_WIDTH"}, validateEnvPositiveInt},
		{"image.height", []string{"PLANTDOC_IMAGE_HEIGHT"}, validateEnvPositiveInt},

		{"prediction.topk", []string{"PLANTDOC_PREDICTION_TOPK"}, validateEnvPositiveInt},
		{"prediction.cachettl", []string{"PLANTDOC_PREDICTION_CACHETTL"}, validateEnvDuration},

		{"uploads.enabled", []string{"PLANTDOC_UPLOADS_ENABLED"}, validateEnvBool},
		{"uploads.path", []string{"PLANTDOC_UPLOADS_PATH"}, nil},
		{"uploads.minfreemb", []string{"PLANTDOC_UPLOADS_MINFREEMB"}, validateEnvNonNegativeInt},

		{"logging.level", []string{"PLANTDOC_LOG_LEVEL"}, validateEnvLogLevel},
		{"logging.format", []string{"PLANTDOC_LOG_FORMAT"}, nil},
		{"logging.file", []string{"PLANTDOC_LOG_FILE"}, nil},

		{"telemetry.enabled", []string{"PLANTDOC_TELEMETRY_ENABLED"}, validateEnvBool},
		{"telemetry.dsn", []string{"PLANTDOC_TELEMETRY_DSN", "SENTRY_DSN"}, nil},
		{"telemetry.environment", []string{"PLANTDOC_TELEMETRY_ENVIRONMENT"}, nil},
	}
}

// bindEnvVars binds every environment variable and validates values that are set
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.ConfigKey, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			value, ok := os.LookupEnv(name)
			if !ok || value == "" {
				continue
			}
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", name, value, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// loadDotEnv loads .env from the working directory when present. Variables
// already set in the environment are not overridden.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	GetLogger().Debug("loaded environment from .env", logger.String("path", ".env"))
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("must be zero or a positive integer")
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration such as 30s or 5m")
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL, DatabasePostgres:
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", DatabaseSQLite, DatabaseMySQL, DatabasePostgres)
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level")
}
