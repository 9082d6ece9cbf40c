package clients

import (
	"context"
	"net/http"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/config"
	"grant-insights/internal/orgid"
)

// Registries groups the external clients the enrichment stages use
type Registries struct {
	Organisations Fetcher
	Companies     Fetcher
	Postcodes     Fetcher
	Geocodes      *GeocodeSource
}

// NewRegistries builds all clients from configuration, sharing one HTTP client
func NewRegistries(cfg *config.Config, client *http.Client, logger logging.Logger) (*Registries, error) {
	base := FetcherConfig{
		Retries:         cfg.FetchRetries,
		Rate:            cfg.FetchRate,
		Burst:           cfg.FetchBurst,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}

	orgs, err := NewOrganisationResolver(withTemplate(base, "organisation", cfg.FTCURL), client, logger)
	if err != nil {
		return nil, err
	}
	companies, err := NewCompanyRegistry(withTemplate(base, "company", cfg.CHURL), client, logger)
	if err != nil {
		return nil, err
	}
	postcodes, err := NewPostcodeResolver(withTemplate(base, "postcode", cfg.PCURL), client, logger)
	if err != nil {
		return nil, err
	}
	geocodes, err := NewGeocodeSource(withTemplate(base, "geocodes", cfg.PCNamesURL), PostcodeFields, client, logger)
	if err != nil {
		return nil, err
	}

	return &Registries{
		Organisations: orgs,
		Companies:     companies,
		Postcodes:     postcodes,
		Geocodes:      geocodes,
	}, nil
}

func withTemplate(cfg FetcherConfig, name, template string) FetcherConfig {
	cfg.Name = name
	cfg.URLTemplate = template
	return cfg
}

// NewOrganisationResolver fetches organisation records by identifier,
// e.g. GB-CHC-225922
func NewOrganisationResolver(cfg FetcherConfig, client *http.Client, logger logging.Logger) (*HTTPFetcher, error) {
	return NewHTTPFetcher(cfg, client, logger)
}

// CompanyRegistry fetches Companies House records. Fetch accepts a company
// number or a GB-COH identifier.
type CompanyRegistry struct {
	*HTTPFetcher
}

// NewCompanyRegistry creates a company registry client
func NewCompanyRegistry(cfg FetcherConfig, client *http.Client, logger logging.Logger) (*CompanyRegistry, error) {
	f, err := NewHTTPFetcher(cfg, client, logger)
	if err != nil {
		return nil, err
	}
	return &CompanyRegistry{HTTPFetcher: f}, nil
}

func (c *CompanyRegistry) Fetch(ctx context.Context, companyNumber string) ([]byte, error) {
	number := orgid.CompanyNumber(companyNumber)
	if number == "" {
		return nil, errors.ValidationError("company number is empty")
	}
	return c.HTTPFetcher.Fetch(ctx, number)
}

// NewPostcodeResolver fetches postcode records, e.g. for "SE1 1AA"
func NewPostcodeResolver(cfg FetcherConfig, client *http.Client, logger logging.Logger) (*HTTPFetcher, error) {
	return NewHTTPFetcher(cfg, client, logger)
}
