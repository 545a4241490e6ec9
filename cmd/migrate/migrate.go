// Package migrate provides the migrate command creating the schema.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/plantdoc/internal/app"
	"github.com/tphakala/plantdoc/internal/conf"
)

// embeddedSeed selects the reference data bundled with the binary.
const embeddedSeed = "embedded"

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	var seedSource string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create the plant, disease, picture and news tables. With --seed the
reference data is loaded afterwards from a YAML file or URL; a bare --seed
loads the embedded tomato data. database.seedfile is used when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ds, err := app.OpenStore(ctx, settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s)\n", settings.Database.Type)

			source := seedSource
			if !cmd.Flags().Changed("seed") {
				source = settings.Database.SeedFile
				if source == "" {
					return nil
				}
			}
			if source == embeddedSeed {
				source = ""
			}

			data, err := app.ApplySeed(ctx, ds, source)
			if err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d plants and %d news items\n", len(data.Plants), len(data.News))
			return nil
		},
	}

	cmd.Flags().StringVar(&seedSource, "seed", "", "Seed reference data from a YAML file or URL after migrating")
	cmd.Flags().Lookup("seed").NoOptDefVal = embeddedSeed
	return cmd
}
