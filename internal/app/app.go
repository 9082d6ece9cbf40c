package app

import (
	"context"

	"grant-insights/internal/clients"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/config"
	"grant-insights/internal/datasets"
	"grant-insights/internal/insights"
	"grant-insights/internal/jobs"
	"grant-insights/internal/locks"
	"grant-insights/internal/lookup"
	"grant-insights/internal/metrics"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/redis"
	"grant-insights/internal/source"
)

// App holds all the application dependencies
type App struct {
	Config       *config.Config
	RedisClient  *redis.Client
	Locker       *locks.RedsyncManager
	Lookup       *lookup.RedisCache
	Geocodes     *lookup.GeocodeMap
	Registries   *clients.Registries
	Downloader   *source.Downloader
	Datasets     *datasets.Cache
	Metrics      *metrics.Metrics
	Orchestrator *pipeline.Orchestrator
	Jobs         *jobs.Store
	Runner       *jobs.Runner
	Insights     *insights.Registry
	Logger       logging.Logger

	bucket *datasets.BucketBlobs
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	// Initialize components in order of dependency
	if err := app.initializeRedis(ctx); err != nil {
		return nil, err
	}
	if err := app.initializeLookup(); err != nil {
		app.Cleanup()
		return nil, err
	}
	if err := app.initializeDatasets(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}
	if err := app.initializeClients(); err != nil {
		app.Cleanup()
		return nil, err
	}
	app.initializePipeline()
	return app, nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Locker != nil {
		app.Locker.Close()
	}
	if app.bucket != nil {
		if err := app.bucket.Close(); err != nil {
			app.Logger.Warn("Failed to close dataset bucket", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
