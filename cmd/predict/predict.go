// Package predict provides the predict command classifying local images.
package predict

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/plantdoc/internal/app"
	"github.com/tphakala/plantdoc/internal/classifier/backends"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/diagnosis"
)

type prediction struct {
	Name       string  `json:"name"`
	Percentage float32 `json:"percentage"`
}

// Command creates the predict command.
func Command(settings *conf.Settings) *cobra.Command {
	var plant string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "predict image1 [image2]",
		Short: "Diagnose one or two local leaf photos",
		Long: `Run the classifier of --plant on one image, or on two images of the same
leaf whose scores are fused, and print the top predictions.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			images := make([][]byte, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				images = append(images, data)
			}

			reg, err := app.LoadModels(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = reg.Close()
				_ = backends.Shutdown()
			}()

			// Never persist CLI inputs as training uploads.
			local := *settings
			local.Uploads.Enabled = false
			local.Prediction.CacheTTL = 0
			svc, _, err := app.NewDiagnosis(&local, reg, nil)
			if err != nil {
				return err
			}

			result, err := svc.Diagnose(cmd.Context(), plant, images...)
			if err != nil {
				return err
			}
			return printResult(cmd, result, asJSON)
		},
	}

	cmd.Flags().StringVarP(&plant, "plant", "p", "", "Plant the photos show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the /uploadfile JSON response")
	_ = cmd.MarkFlagRequired("plant")
	return cmd
}

func printResult(cmd *cobra.Command, result *diagnosis.Result, asJSON bool) error {
	out := make([]prediction, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		out = append(out, prediction{Name: p.Label, Percentage: p.Score})
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tLABEL\tSCORE\n")
	for i, p := range out {
		fmt.Fprintf(w, "%d\t%s\t%.2f%%\n", i+1, p.Name, p.Percentage*100)
	}
	return w.Flush()
}
