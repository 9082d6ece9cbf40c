// Package pipeline runs the enrichment stages over a dataset and memoizes the
// result in the dataset cache.
package pipeline

import (
	"context"
	"time"

	"grant-insights/internal/clients"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/lookup"
	"grant-insights/internal/metrics"
	"grant-insights/internal/source"
	"grant-insights/internal/table"
)

// Stage is one step of the enrichment. Run may modify t in place and returns
// the table the next stage receives. Stages must be safe to re-run on their
// own output.
type Stage struct {
	Name  string
	Phase State
	Run   func(ctx context.Context, t *table.Table, env *Env) (*table.Table, error)
	// Skip reports whether the stage has nothing to do for t
	Skip func(t *table.Table) bool
}

// Names returns the names of stages in order
func Names(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

// GeocodeNamer resolves area codes to names
type GeocodeNamer interface {
	Name(ctx context.Context, areaType, code string) (string, error)
}

// Env is what a stage may use besides its input table. The lookup cache is
// the only shared state a stage writes to.
type Env struct {
	Input         source.Input
	Download      func(ctx context.Context, url string) ([]byte, string, error)
	Lookup        lookup.Cache
	Geocodes      GeocodeNamer
	Organisations clients.Fetcher
	Companies     clients.Fetcher
	Postcodes     clients.Fetcher
	CompanyLimit  int
	Logger        logging.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time

	progress func(current, total int)
}

// Progress reports that the running stage is at item current of total
func (e *Env) Progress(current, total int) {
	if e.progress != nil {
		e.progress(current, total)
	}
}

// WithProgress returns a copy of e reporting item progress to fn
func (e *Env) WithProgress(fn func(current, total int)) *Env {
	cp := *e
	cp.progress = fn
	return &cp
}
