package stages

import (
	"context"
	"fmt"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// Load parses the raw input. URL inputs are downloaded here unless the
// orchestrator already fetched them to compute the dataset id.
func Load() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Load data to be prepared",
		Phase: pipeline.Loading,
		Run:   load,
	}
}

func load(ctx context.Context, _ *table.Table, env *pipeline.Env) (*table.Table, error) {
	in := env.Input
	contents, contentType := in.Contents, in.ContentType
	name := in.Filename

	if in.IsURL() {
		name = in.URL
		if len(contents) == 0 {
			if env.Download == nil {
				return nil, errors.ConfigError("no downloader configured for URL datasets")
			}
			var err error
			var ct string
			contents, ct, err = env.Download(ctx, in.URL)
			if err != nil {
				return nil, err
			}
			if contentType == "" {
				contentType = ct
			}
		}
	}

	format, err := table.FormatFromName(name, contentType)
	if err != nil {
		return nil, errors.InputError(fmt.Sprintf("Could not read %s: %v", name, err))
	}
	t, err := table.Load(contents, format)
	if err != nil {
		return nil, errors.InputError(fmt.Sprintf("Could not read %s as %s: %v", name, format, err))
	}

	env.Logger.Info("Loaded dataset",
		logging.String("format", string(format)),
		logging.Int("rows", t.Len()),
		logging.Int("columns", len(t.Columns())),
	)
	return t, nil
}
