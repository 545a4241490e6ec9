// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strings"
)

// Supported database backends
const (
	DatabaseSQLite   = "sqlite"
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateServerSettings,
		validateDatabaseSettings,
		validateModelSettings,
		validateImageSettings,
		validatePredictionSettings,
		validateUploadSettings,
		validateTelemetrySettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateServerSettings(s *Settings) error {
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", s.Server.Port)
	}
	if s.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdowntimeout must not be negative")
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	db := &s.Database
	switch db.Type {
	case DatabaseSQLite:
		if db.DSN == "" && db.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DatabaseMySQL, DatabasePostgres:
		if db.DSN == "" {
			return fmt.Errorf("database.dsn is required for %s", db.Type)
		}
	default:
		return fmt.Errorf("unsupported database.type %q", db.Type)
	}
	if db.MaxOpenConns < 0 || db.MaxIdleConns < 0 {
		return errors.New("database connection limits must not be negative")
	}
	return nil
}

func validateModelSettings(s *Settings) error {
	if len(s.Models.Plants) == 0 {
		return errors.New("models.plants must contain at least one plant")
	}
	if s.Models.Threads < 0 {
		return errors.New("models.threads must not be negative")
	}

	var errs []error
	seen := make(map[string]bool, len(s.Models.Plants))
	for i, p := range s.Models.Plants {
		name := NormalizeName(p.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("models.plants[%d]: name is required", i))
			continue
		case seen[name]:
			errs = append(errs, fmt.Errorf("models.plants[%d]: duplicate plant %q", i, name))
		}
		seen[name] = true

		if p.Path == "" {
			errs = append(errs, fmt.Errorf("plant %q: path is required", name))
		}
		if len(p.Labels) == 0 && p.LabelFile == "" {
			errs = append(errs, fmt.Errorf("plant %q: labels or labelfile is required", name))
		}
		if len(p.Labels) > 0 && p.LabelFile != "" {
			errs = append(errs, fmt.Errorf("plant %q: set either labels or labelfile, not both", name))
		}
		switch strings.ToLower(p.Layout) {
		case "", LayoutNHWC, LayoutNCHW:
		default:
			errs = append(errs, fmt.Errorf("plant %q: unknown layout %q", name, p.Layout))
		}
		switch strings.ToLower(p.Output) {
		case "", OutputProbabilities, OutputLogits:
		default:
			errs = append(errs, fmt.Errorf("plant %q: unknown output %q", name, p.Output))
		}
	}
	return errors.Join(errs...)
}

func validateImageSettings(s *Settings) error {
	if s.Image.Width <= 0 || s.Image.Height <= 0 {
		return fmt.Errorf("image dimensions %dx%d must be positive", s.Image.Width, s.Image.Height)
	}
	return nil
}

func validatePredictionSettings(s *Settings) error {
	if s.Prediction.TopK <= 0 {
		return errors.New("prediction.topk must be positive")
	}
	if s.Prediction.CacheTTL < 0 {
		return errors.New("prediction.cachettl must not be negative")
	}
	return nil
}

func validateUploadSettings(s *Settings) error {
	if s.Uploads.Enabled && s.Uploads.Path == "" {
		return errors.New("uploads.path is required when uploads are enabled")
	}
	if s.Uploads.MinFreeMB < 0 {
		return errors.New("uploads.minfreemb must not be negative")
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		return errors.New("telemetry.dsn is required when telemetry is enabled")
	}
	if s.Telemetry.SampleRate < 0 || s.Telemetry.SampleRate > 1 {
		return errors.New("telemetry.samplerate must be between 0 and 1")
	}
	return nil
}
