package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" mapstructure:"level"`          // default level for all modules
	Format       string            `yaml:"format" mapstructure:"format"`                // "text" or "json" for console output
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`            // "Local", "UTC" or an IANA name
	File         string            `yaml:"file" mapstructure:"file"`                    // optional JSON log file
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"modulelevels"`   // per-module overrides
	Quiet        bool              `yaml:"quiet" mapstructure:"quiet"`                  // disable console output
}

// Default values for logging configuration.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultConfig returns a console-only configuration at info level.
func DefaultConfig() *LoggingConfig {
	return &LoggingConfig{
		DefaultLevel: DefaultLogLevel,
		Format:       DefaultLogFormat,
		Timezone:     "Local",
	}
}
