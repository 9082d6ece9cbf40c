// Package cmd holds the grant-insights command line
package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"grant-insights/internal/app"
	"grant-insights/internal/common/logging"
)

// NewRootCommand builds the command tree
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "grant-insights",
		Short: "Enrich 360Giving grant data and summarise it.",
		Long: `Enrich 360Giving grant data with details of the recipient organisations
and the areas they are in, then summarise the result.

Configuration is read from the environment (and a .env file), optionally
layered over a YAML file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")

	rc.AddCommand(newEnrichCommand(stdin, stdout, stderr))
	rc.AddCommand(newShowCommand(stdin, stdout, stderr))
	rc.AddCommand(newDeleteCommand(stdin, stdout, stderr))
	rc.AddCommand(newListCommand(stdin, stdout, stderr))
	rc.AddCommand(newStatusCommand(stdin, stdout, stderr))
	rc.AddCommand(newInsightsCommand(stdin, stdout, stderr))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// withApp builds the application for one command and releases it afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer logging.MustSync()
	defer a.Cleanup()
	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
