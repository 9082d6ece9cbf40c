package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"grant-insights/internal/app"
	"grant-insights/internal/common/errors"
	"grant-insights/internal/datasets"
)

func newShowCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a cached dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				t, meta, found, err := a.Orchestrator.GetCached(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return errors.NotFoundError("dataset " + args[0])
				}
				out := struct {
					*datasets.Metadata
					Columns []string         `json:"columns"`
					Sample  []map[string]any `json:"sample,omitempty"`
				}{Metadata: meta, Columns: t.ColumnNames()}
				for i := 0; i < rows && i < t.Len(); i++ {
					out.Sample = append(out.Sample, t.Row(i))
				}
				return writeJSON(stdout, out)
			})
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "Number of rows to print.")
	return cmd
}

func newDeleteCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a dataset from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Datasets.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newListCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached datasets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Datasets.List(ctx)
				if err != nil {
					return err
				}
				return writeJSON(stdout, list)
			})
		},
	}
}

func newStatusCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB",
		Short: "Show the progress of an enrichment job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				st, err := a.Jobs.Status(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(stdout, st)
			})
		},
	}
}

func newInsightsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "insights ID [NAME]",
		Short: "Summarise a cached dataset",
		Long: `Summarise a cached dataset. Without NAME every insight is printed.
Names: summary, by_funder, by_grant_programme, by_award_year, by_amount_band,
by_org_type, by_income_band, by_age_band, by_region, by_country.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				t, _, found, err := a.Orchestrator.GetCached(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return errors.NotFoundError("dataset " + args[0])
				}
				if len(args) == 1 {
					all, err := a.Insights.RunAll(t)
					if err != nil {
						return err
					}
					return writeJSON(stdout, all)
				}
				v, err := a.Insights.Run(args[1], t)
				if err != nil {
					return err
				}
				return writeJSON(stdout, v)
			})
		},
	}
}
