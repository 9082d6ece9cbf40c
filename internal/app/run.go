package app

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/joho/godotenv"

	"grant-insights/internal/common/logging"
	"grant-insights/internal/config"
)

// Setup loads .env and configuration, initialises logging and builds the
// application. The caller must call Cleanup.
func Setup(ctx context.Context, configPath string) (*App, error) {
	// Load environment variables
	_ = godotenv.Load()

	// Load and validate configuration
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, err
	}

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return nil, err
	}

	if cfg.MetricsAddress != "" {
		go app.serveMetrics()
	}
	return app, nil
}

func (app *App) serveMetrics() {
	app.Logger.Info("Serving metrics", logging.String("address", app.Config.MetricsAddress))
	if err := app.Metrics.Serve(app.Config.MetricsAddress); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		app.Logger.Error("Metrics server stopped", err)
	}
}
