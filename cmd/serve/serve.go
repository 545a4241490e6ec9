// Package serve provides the serve command running the HTTP API.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/plantdoc/internal/api"
	"github.com/tphakala/plantdoc/internal/app"
	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/logger"
)

// Command creates the serve command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the PlantDoc HTTP API",
		Long:  "Load every catalogued classifier, open the reference data store and serve the JSON API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, settings, info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("host", "", "Interface to listen on (default all)")
	cmd.Flags().Int("port", 0, "Port to listen on (default 8000)")
	cmd.Flags().Bool("uploads", false, "Persist uploaded images for training")

	bindings := map[string]string{
		"server.host":     "host",
		"server.port":     "port",
		"uploads.enabled": "uploads",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	log := logger.Global().Module("serve")

	rt, err := app.NewRuntime(ctx, settings, info)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("error releasing runtime", logger.Error(err))
		}
	}()

	srv, err := api.New(settings,
		api.WithDataStore(rt.Store),
		api.WithDiagnoser(rt.Diagnosis),
		api.WithModels(rt.Registry),
		api.WithMetrics(rt.Metrics),
		api.WithBuildInfo(info))
	if err != nil {
		return err
	}

	log.Info("starting PlantDoc",
		logger.String("version", info.Version()),
		logger.String("address", settings.Server.Address()))
	return srv.Run(ctx)
}
