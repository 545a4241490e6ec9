// Package seed provides the seed command loading reference data.
package seed

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/plantdoc/internal/app"
	"github.com/tphakala/plantdoc/internal/conf"
)

// Command creates the seed command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file|url]",
		Short: "Load plant and disease reference data",
		Long: `Upsert plants, diseases, pictures and news from a YAML seed file or
http(s) URL. Without an argument the embedded tomato data is loaded.
Running a seed twice leaves the data unchanged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			source := settings.Database.SeedFile
			if len(args) == 1 {
				source = args[0]
			}

			ds, err := app.OpenStore(ctx, settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			data, err := app.ApplySeed(ctx, ds, source)
			if err != nil {
				return err
			}

			diseases := 0
			for _, p := range data.Plants {
				diseases += len(p.Diseases)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d plants, %d diseases and %d news items\n",
				len(data.Plants), diseases, len(data.News))
			return nil
		},
	}
}
