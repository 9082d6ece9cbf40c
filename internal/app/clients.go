package app

import (
	"grant-insights/internal/clients"
	"grant-insights/internal/common/http"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/source"
)

func (app *App) initializeClients() error {
	httpClient := http.NewHTTPClient(http.WithTimeout(app.Config.FetchTimeout))

	registries, err := clients.NewRegistries(app.Config, httpClient, app.Logger)
	if err != nil {
		return err
	}
	app.Registries = registries

	// downloads can be far larger than a registry record
	app.Downloader = source.NewDownloader(http.NewHTTPClient(http.WithTimeout(0)), app.Config.FetchRetries, app.Logger)

	app.Logger.Info("Registries: Configured",
		logging.String("organisations", app.Config.FTCURL),
		logging.String("companies", app.Config.CHURL),
		logging.String("postcodes", app.Config.PCURL),
	)
	return nil
}
