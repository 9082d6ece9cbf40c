package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grant-insights/internal/clients"
	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/datasets"
	"grant-insights/internal/locks"
	"grant-insights/internal/lookup"
	"grant-insights/internal/metrics"
	"grant-insights/internal/source"
	"grant-insights/internal/table"
)

// Downloader fetches remote datasets
type Downloader interface {
	Head(ctx context.Context, url string) (token string, headers map[string]string, err error)
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// Deps are the long-lived resources shared by every run
type Deps struct {
	Datasets      *datasets.Cache
	Lookup        lookup.Cache
	Geocodes      *lookup.GeocodeMap
	GeocodeSource lookup.GeocodeSource
	Organisations clients.Fetcher
	Companies     clients.Fetcher
	Postcodes     clients.Fetcher
	Downloader    Downloader
	// Locker is optional; without it concurrent runs of the same dataset may
	// both compute it
	Locker  locks.Locker
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// Config tunes the orchestrator
type Config struct {
	UploadExpiry time.Duration
	LockExpiry   time.Duration
	CompanyLimit int
}

// Result of Enrich
type Result struct {
	ID       string
	Table    *table.Table
	Metadata *datasets.Metadata
	// Cached is set when the table came from the dataset cache
	Cached bool
	States []State
}

// Orchestrator runs the stages for a dataset at most once per dataset id
type Orchestrator struct {
	stages []Stage
	deps   Deps
	cfg    Config
	logger logging.Logger
	now    func() time.Time
}

// New creates an orchestrator running stages in order
func New(stages []Stage, deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if cfg.LockExpiry <= 0 {
		cfg.LockExpiry = 15 * time.Minute
	}
	return &Orchestrator{
		stages: stages,
		deps:   deps,
		cfg:    cfg,
		logger: logger.WithFields(logging.String("component", "orchestrator")),
		now:    time.Now,
	}
}

// Stages returns the names of the stages in run order
func (o *Orchestrator) Stages() []string {
	return Names(o.stages)
}

// identity is what the orchestrator knows about an input before loading it
type identity struct {
	id      string
	reuse   bool
	headers map[string]string
}

// Enrich returns the enriched table for in, from the dataset cache when the
// same input was enriched before. Input errors and cache backend errors are
// returned unchanged; nothing is cached for a failed run.
func (o *Orchestrator) Enrich(ctx context.Context, in source.Input, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = Discard
	}
	if err := in.Validate(); err != nil {
		o.deps.Metrics.RunFinished("failed", 0, 0)
		return nil, err
	}

	ident, err := o.identify(ctx, &in)
	if err != nil {
		o.deps.Metrics.RunFinished("failed", 0, 0)
		return nil, err
	}
	ctx = logging.ContextWithDataset(ctx, ident.id)
	logger := o.logger.WithContext(ctx).WithFields(logging.String("source", in.Name()))

	if ident.reuse {
		if res, ok, err := o.cached(ctx, ident.id); err != nil || ok {
			return res, err
		}
	}

	if o.deps.Locker != nil {
		lock, err := o.deps.Locker.AcquireLock(ctx, "dataset:"+ident.id, o.cfg.LockExpiry)
		if err != nil {
			o.deps.Metrics.RunFinished("failed", 0, 0)
			return nil, err
		}
		defer lock.Release(context.Background())

		// another worker may have finished it while we waited
		if ident.reuse {
			if res, ok, err := o.cached(ctx, ident.id); err != nil || ok {
				return res, err
			}
		}
	}

	if err := o.ensureGeocodes(ctx, logger); err != nil {
		o.deps.Metrics.RunFinished("failed", 0, 0)
		return nil, err
	}

	start := o.now()
	machine := NewMachine()
	t, err := o.run(ctx, in, machine, sink, logger)
	if err != nil {
		logger.Error("Enrichment failed", err, logging.String("state", machine.State().String()))
		o.deps.Metrics.RunFinished("failed", o.now().Sub(start), 0)
		return &Result{ID: ident.id, States: machine.History()}, err
	}

	meta := datasets.Metadata{}
	if in.IsURL() {
		meta.URL = in.URL
		meta.Headers = ident.headers
		meta.Registry = in.Registry
	} else {
		meta.Filename = in.Filename
		if o.cfg.UploadExpiry > 0 {
			expires := o.now().Add(o.cfg.UploadExpiry).UTC()
			meta.Expires = &expires
		}
	}
	saved, err := o.deps.Datasets.Put(ctx, ident.id, t, meta)
	if err != nil {
		o.deps.Metrics.RunFinished("failed", o.now().Sub(start), 0)
		return nil, err
	}

	o.deps.Metrics.RunFinished("completed", o.now().Sub(start), t.Len())
	logger.Info("Enrichment complete",
		logging.Int("rows", t.Len()),
		logging.Duration("duration", o.now().Sub(start)),
	)
	return &Result{ID: ident.id, Table: t, Metadata: saved, States: machine.History()}, nil
}

// GetCached returns a previously enriched dataset
func (o *Orchestrator) GetCached(ctx context.Context, id string) (*table.Table, *datasets.Metadata, bool, error) {
	return o.deps.Datasets.Get(ctx, id)
}

func (o *Orchestrator) cached(ctx context.Context, id string) (*Result, bool, error) {
	t, meta, found, err := o.deps.Datasets.Get(ctx, id)
	if err != nil {
		o.deps.Metrics.RunFinished("failed", 0, 0)
		return nil, false, err
	}
	o.deps.Metrics.CacheResult(found)
	if !found {
		return nil, false, nil
	}
	o.logger.WithContext(ctx).Info("Using cached dataset", logging.Int("rows", t.Len()))
	o.deps.Metrics.RunFinished("cached", 0, 0)
	return &Result{ID: id, Table: t, Metadata: meta, Cached: true}, true, nil
}

// identify computes the dataset id. Uploads hash their contents. URLs use the
// server's freshness token when there is one and are otherwise downloaded and
// hashed. A registry identifier is used as-is, but the cached copy is only
// reused if it came from the same URL with the same token.
func (o *Orchestrator) identify(ctx context.Context, in *source.Input) (identity, error) {
	if !in.IsURL() {
		return identity{id: datasets.ID(in.Contents, in.Filename, in.Version), reuse: true}, nil
	}
	if o.deps.Downloader == nil {
		return identity{}, errors.ConfigError("no downloader configured for URL datasets")
	}

	token, headers, err := o.deps.Downloader.Head(ctx, in.URL)
	if err != nil {
		return identity{}, err
	}
	version := in.Version
	if version == "" {
		version = token
	}

	if id := registryID(in.Registry); id != "" {
		meta, found, err := o.deps.Datasets.Metadata(ctx, id)
		if err != nil {
			return identity{}, err
		}
		reuse := found && meta.URL == in.URL && freshnessToken(meta.Headers) == token
		return identity{id: id, reuse: reuse, headers: headers}, nil
	}

	if version != "" {
		return identity{id: datasets.ID(nil, in.URL, version), reuse: true, headers: headers}, nil
	}

	contents, contentType, err := o.deps.Downloader.Get(ctx, in.URL)
	if err != nil {
		return identity{}, err
	}
	in.Contents = contents
	if in.ContentType == "" {
		in.ContentType = contentType
	}
	return identity{id: datasets.ID(contents, in.URL, ""), reuse: true, headers: headers}, nil
}

func registryID(entry map[string]any) string {
	if id, ok := entry["identifier"].(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func freshnessToken(headers map[string]string) string {
	var modified string
	for k, v := range headers {
		switch {
		case strings.EqualFold(k, "ETag"):
			return v
		case strings.EqualFold(k, "Last-Modified"):
			modified = v
		}
	}
	return modified
}

// ensureGeocodes populates the geocode names before any postcode is resolved.
// A failed bulk fetch only degrades the run: codes are shown unresolved.
func (o *Orchestrator) ensureGeocodes(ctx context.Context, logger logging.Logger) error {
	if o.deps.Geocodes == nil || o.deps.GeocodeSource == nil {
		return nil
	}
	err := o.deps.Geocodes.Ensure(ctx, o.deps.GeocodeSource)
	if err == nil {
		return nil
	}
	if errors.IsType(err, errors.ErrTypeCacheBackend) || ctx.Err() != nil {
		return err
	}
	logger.Warn("Could not load geocode names, area codes will not be resolved", logging.Err(err))
	return nil
}

func (o *Orchestrator) env(in source.Input) *Env {
	var download func(context.Context, string) ([]byte, string, error)
	if o.deps.Downloader != nil {
		download = o.deps.Downloader.Get
	}
	var geocodes GeocodeNamer
	if o.deps.Geocodes != nil {
		geocodes = o.deps.Geocodes
	}
	return &Env{
		Input:         in,
		Download:      download,
		Lookup:        o.deps.Lookup,
		Geocodes:      geocodes,
		Organisations: o.deps.Organisations,
		Companies:     o.deps.Companies,
		Postcodes:     o.deps.Postcodes,
		CompanyLimit:  o.cfg.CompanyLimit,
		Logger:        o.logger,
		Metrics:       o.deps.Metrics,
		Now:           o.now,
	}
}

func (o *Orchestrator) run(ctx context.Context, in source.Input, machine *Machine, sink ProgressSink, logger logging.Logger) (*table.Table, error) {
	total := len(o.stages)
	if err := sink.Stages(ctx, Names(o.stages)); err != nil {
		logger.Warn("Could not record stages", logging.Err(err))
	}
	env := o.env(in)

	var t *table.Table
	for k, stage := range o.stages {
		if err := machine.Advance(stage.Phase); err != nil {
			return nil, errors.InternalError("stage order", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.TimeoutError(stage.Name)
		}

		k := k
		stageCtx := logging.ContextWithStage(ctx, stage.Name)
		stageLogger := o.logger.WithContext(stageCtx).WithFields(logging.String("source", in.Name()))
		stageEnv := env.WithProgress(func(current, n int) {
			if err := sink.Update(ctx, k, total, &ItemProgress{Current: current, Total: n}); err != nil {
				stageLogger.Debug("Could not record progress", logging.Err(err))
			}
		})
		stageEnv.Logger = stageLogger

		start := o.now()
		if t != nil && stage.Skip != nil && stage.Skip(t) {
			stageLogger.Info(stage.Name + " [skipped]")
			o.deps.Metrics.ObserveStage(stage.Name, metrics.StageSkipped, 0)
		} else {
			stageLogger.Info(stage.Name)
			next, err := stage.Run(stageCtx, t, stageEnv)
			if err != nil {
				o.deps.Metrics.ObserveStage(stage.Name, metrics.StageFailed, o.now().Sub(start))
				if machine.State() == Validating && errors.IsType(err, errors.ErrTypeInput) {
					_ = machine.Transition(Failed)
				}
				return nil, err
			}
			if next == nil {
				return nil, errors.InternalError(fmt.Sprintf("stage %q returned no table", stage.Name), nil)
			}
			t = next
			o.deps.Metrics.ObserveStage(stage.Name, metrics.StageOK, o.now().Sub(start))
		}

		if err := sink.Update(ctx, k, total, nil); err != nil {
			stageLogger.Warn("Could not record progress", logging.Err(err))
		}
	}

	if t == nil {
		return nil, errors.InternalError("no stage produced a table", nil)
	}
	if err := machine.Advance(Done); err != nil {
		return nil, errors.InternalError("stage order", err)
	}
	return t, nil
}
