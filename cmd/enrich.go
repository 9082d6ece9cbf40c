package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"grant-insights/internal/app"
	"grant-insights/internal/common/errors"
	"grant-insights/internal/jobs"
	"grant-insights/internal/source"
)

type enrichOutput struct {
	JobID   string `json:"jobid"`
	Source  string `json:"source"`
	Dataset string `json:"dataset,omitempty"`
	Rows    int    `json:"rows,omitempty"`
	Cached  bool   `json:"cached,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newEnrichCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var (
		files   []string
		urls    []string
		version string
	)
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich grant files or published datasets",
		Long: `Enrich one or more grant files (--file) or published datasets (--url).
Several inputs are enriched in parallel, WORKER_CONCURRENCY at a time.
A dataset that was enriched before is returned from the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := enrichInputs(files, urls, version)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return runEnrich(ctx, a, inputs, stdout)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVarP(&files, "file", "f", nil, "Grant file to enrich (csv, xlsx or json). Repeatable.")
	flags.StringSliceVarP(&urls, "url", "u", nil, "URL of a published grant file. Repeatable.")
	flags.StringVar(&version, "version", "", "Version of the data, used instead of the server's ETag.")
	return cmd
}

func enrichInputs(files, urls []string, version string) ([]source.Input, error) {
	if len(files) == 0 && len(urls) == 0 {
		return nil, errors.ValidationError("one of --file or --url is required")
	}
	var inputs []source.Input
	for _, path := range files {
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.InputError(fmt.Sprintf("could not read %s: %v", path, err))
		}
		in := source.FromFile(filepath.Base(path), contents)
		in.Version = version
		inputs = append(inputs, in)
	}
	for _, url := range urls {
		in := source.FromURL(url)
		in.Version = version
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func runEnrich(ctx context.Context, a *app.App, inputs []source.Input, stdout io.Writer) error {
	var results []*jobs.Job
	if len(inputs) == 1 {
		job, err := a.Runner.Run(ctx, inputs[0])
		if job == nil {
			return err
		}
		results = []*jobs.Job{job}
	} else {
		pool := jobs.NewPool(a.Runner, a.Config.WorkerConcurrency)
		var err error
		if results, err = pool.RunAll(ctx, inputs); err != nil {
			return err
		}
	}

	var failed error
	out := make([]enrichOutput, 0, len(results))
	for _, job := range results {
		o := enrichOutput{JobID: job.ID, Source: job.Input.Name()}
		if job.Err != nil {
			o.Error = errors.UserMessage(job.Err)
			if failed == nil {
				failed = job.Err
			}
		} else {
			o.Dataset = job.Result.ID
			o.Rows = job.Result.Table.Len()
			o.Cached = job.Result.Cached
		}
		out = append(out, o)
	}
	if err := writeJSON(stdout, out); err != nil {
		return err
	}
	return failed
}
