// Package cmd wires the PlantDoc command line.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/plantdoc/cmd/migrate"
	"github.com/tphakala/plantdoc/cmd/news"
	"github.com/tphakala/plantdoc/cmd/predict"
	"github.com/tphakala/plantdoc/cmd/seed"
	"github.com/tphakala/plantdoc/cmd/serve"
	"github.com/tphakala/plantdoc/cmd/version"
	"github.com/tphakala/plantdoc/internal/app"
	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled
// from config, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var configFile string
	var closeLogger func() error

	rootCmd := &cobra.Command{
		Use:           "plantdoc",
		Short:         "PlantDoc plant disease diagnosis service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	versionCmd := version.Command(info)
	rootCmd.AddCommand(
		serve.Command(settings, info),
		migrate.Command(settings),
		seed.Command(settings),
		news.Command(settings),
		predict.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if configFile != "" {
			viper.SetConfigFile(configFile)
		}

		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		closeLogger, err = app.SetupLogging(settings)
		if err != nil {
			return err
		}
		if err := telemetry.Init(&settings.Telemetry, info.Version()); err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		telemetry.Flush(telemetryFlushTimeout)
		if closeLogger != nil {
			return closeLogger()
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(configFile, "config", "", "Path to config file (default: search ./config.yaml, ~/.config/plantdoc, /etc/plantdoc)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("db-type", "", "Database type (sqlite, mysql, postgres)")
	flags.String("db-dsn", "", "Database connection string")

	bindings := map[string]string{
		"debug":         "debug",
		"logging.level": "log-level",
		"database.type": "db-type",
		"database.dsn":  "db-dsn",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
