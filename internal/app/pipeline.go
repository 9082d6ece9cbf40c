package app

import (
	"grant-insights/internal/insights"
	"grant-insights/internal/jobs"
	"grant-insights/internal/metrics"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/pipeline/stages"
)

func (app *App) initializePipeline() {
	app.Metrics = metrics.New("")
	app.Orchestrator = pipeline.New(stages.Default(), pipeline.Deps{
		Datasets:      app.Datasets,
		Lookup:        app.Lookup,
		Geocodes:      app.Geocodes,
		GeocodeSource: app.Registries.Geocodes,
		Organisations: app.Registries.Organisations,
		Companies:     app.Registries.Companies,
		Postcodes:     app.Registries.Postcodes,
		Downloader:    app.Downloader,
		Locker:        app.Locker,
		Metrics:       app.Metrics,
		Logger:        app.Logger,
	}, pipeline.Config{
		UploadExpiry: app.Config.UploadExpiry,
		CompanyLimit: app.Config.CompanyLookupLimit,
	})

	app.Jobs = jobs.NewStore(app.RedisClient, app.Config.JobStatusTTL)
	app.Runner = jobs.NewRunner(app.Orchestrator, app.Jobs, app.Config.JobTimeout, app.Logger)
	app.Insights = insights.NewRegistry()
}
