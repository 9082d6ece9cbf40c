package jobs

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/source"
)

// Enricher is the part of the orchestrator a job needs
type Enricher interface {
	Enrich(ctx context.Context, in source.Input, sink pipeline.ProgressSink) (*pipeline.Result, error)
}

// Runner runs one enrichment per job and records its outcome
type Runner struct {
	enricher Enricher
	store    *Store
	timeout  time.Duration
	logger   logging.Logger
	newID    func() string
}

// NewRunner creates a runner. A timeout of zero leaves jobs unbounded.
func NewRunner(enricher Enricher, store *Store, timeout time.Duration, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Runner{
		enricher: enricher,
		store:    store,
		timeout:  timeout,
		logger:   logger.WithFields(logging.String("component", "jobs")),
		newID:    uuid.NewString,
	}
}

// Job is the outcome of one run
type Job struct {
	ID     string
	Input  source.Input
	Result *pipeline.Result
	Err    error
}

// Run enriches in as a new job. The job id is returned even when the
// enrichment fails, so its status can still be read.
func (r *Runner) Run(ctx context.Context, in source.Input) (*Job, error) {
	job := &Job{ID: r.newID(), Input: in}
	ctx = logging.ContextWithJob(ctx, job.ID)
	logger := r.logger.WithContext(ctx).WithFields(logging.String("source", in.Name()))

	if err := r.store.Start(ctx, job.ID); err != nil {
		return job, err
	}
	logger.Info("Job started")

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := r.enricher.Enrich(runCtx, in, r.store.Progress(job.ID))
	if err != nil && stderrors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.IsType(err, errors.ErrTypeTimeout) {
		err = errors.TimeoutError("job " + job.ID)
	}
	job.Result, job.Err = res, err

	// the job's own context may be done; its status must still be written
	recordCtx := context.WithoutCancel(ctx)
	if err != nil {
		logger.Error("Job failed", err, logging.String("error_type", string(errors.GetType(err))))
		if werr := r.store.Fail(recordCtx, job.ID, err); werr != nil {
			logger.Warn("Could not record job failure", logging.Err(werr))
		}
		return job, err
	}

	if werr := r.store.Complete(recordCtx, job.ID, res.ID); werr != nil {
		logger.Warn("Could not record job completion", logging.Err(werr))
	}
	logger.Info("Job completed",
		logging.String("dataset_id", res.ID),
		logging.Duration("duration", time.Since(start)),
	)
	return job, nil
}

// Pool runs several jobs at once
type Pool struct {
	runner      *Runner
	concurrency int
}

func NewPool(runner *Runner, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{runner: runner, concurrency: concurrency}
}

// RunAll runs a job per input and returns them in input order. A failed job
// does not stop the others, except a cache backend failure, which cancels
// the jobs not yet finished and is returned.
func (p *Pool) RunAll(ctx context.Context, inputs []source.Input) ([]*Job, error) {
	jobs := make([]*Job, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			job, err := p.runner.Run(ctx, in)
			jobs[i] = job
			if err != nil && errors.IsType(err, errors.ErrTypeCacheBackend) {
				return err
			}
			return nil
		})
	}
	return jobs, g.Wait()
}
