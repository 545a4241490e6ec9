// Package news provides the news command for publishing news items.
package news

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/plantdoc/internal/app"
	"github.com/tphakala/plantdoc/internal/conf"
)

// Command creates the news command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Manage news items",
	}
	cmd.AddCommand(addCommand(settings))
	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var title, body string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Publish a news item",
		Long:  "Publish a news item. Title and body are prompted for on stdin when not given as flags.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())

			var err error
			if title == "" {
				if title, err = prompt(in, out, "Enter the news title: "); err != nil {
					return err
				}
			}
			if body == "" {
				if body, err = prompt(in, out, "Enter the news body: "); err != nil {
					return err
				}
			}

			ds, err := app.OpenStore(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			item, err := ds.AddNews(cmd.Context(), title, body)
			if err != nil {
				fmt.Fprintf(out, "Failed to add news: %v\n", err)
				return err
			}
			fmt.Fprintf(out, "News added successfully (id %d)\n", item.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "News title")
	cmd.Flags().StringVar(&body, "body", "", "News body")
	return cmd
}

// prompt writes label and reads one line. EOF after partial input is
// accepted.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
