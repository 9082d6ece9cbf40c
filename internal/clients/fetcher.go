// Package clients fetches reference data from the external registries: the
// organisation resolver, the company registry, the postcode resolver and the
// bulk area-name list. Every request is paced per host, guarded by a circuit
// breaker and retried with backoff.
package clients

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"grant-insights/internal/circuitbreaker"
	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/common/ratelimit"
	"grant-insights/internal/common/utils"
)

const maxBodySize = 16 << 20

// Fetcher returns the raw JSON document for a key. A key the registry does
// not know is a not_found AppError; anything else that goes wrong is a lookup
// AppError.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// FetcherConfig describes one registry endpoint. URLTemplate contains {} where
// the escaped key goes.
type FetcherConfig struct {
	Name            string
	URLTemplate     string
	Retries         int
	RetryDelay      time.Duration
	Rate            float64
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// HTTPFetcher implements Fetcher over HTTP GET
type HTTPFetcher struct {
	name     string
	template string
	client   *http.Client
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.GoBreakerAdapter
	retry    utils.RetryConfig
	logger   logging.Logger
}

// NewHTTPFetcher creates a fetcher for one registry
func NewHTTPFetcher(cfg FetcherConfig, client *http.Client, logger logging.Logger) (*HTTPFetcher, error) {
	if cfg.URLTemplate == "" {
		return nil, errors.ConfigError(fmt.Sprintf("%s: url template is required", cfg.Name))
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if client == nil {
		client = http.DefaultClient
	}

	limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.Rate,
		BurstSize:         cfg.Burst,
		Enabled:           cfg.Rate > 0,
	})
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("%s: %v", cfg.Name, err))
	}

	breakerCfg := circuitbreaker.DefaultConfig()
	if cfg.BreakerFailures > 0 {
		breakerCfg.MaxFailures = cfg.BreakerFailures
	}
	if cfg.BreakerTimeout > 0 {
		breakerCfg.Timeout = cfg.BreakerTimeout
	}

	retry := utils.DefaultRetryConfig()
	if cfg.Retries > 0 {
		retry.MaxAttempts = cfg.Retries
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	retry.Retryable = retryable

	logger = logger.WithFields(logging.String("registry", cfg.Name))
	return &HTTPFetcher{
		name:     cfg.Name,
		template: cfg.URLTemplate,
		client:   client,
		limiter:  limiter,
		breaker:  circuitbreaker.NewGoBreaker(cfg.Name, breakerCfg, logger),
		retry:    retry,
		logger:   logger,
	}, nil
}

// Name returns the registry name
func (f *HTTPFetcher) Name() string {
	return f.name
}

// URL builds the request URL for key
func (f *HTTPFetcher) URL(key string) string {
	return strings.Replace(f.template, "{}", url.PathEscape(key), 1)
}

// Fetch retrieves and validates the JSON document for key
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	body, err := f.get(ctx, f.URL(key), key)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.LookupError(f.name, key, fmt.Errorf("response is not valid JSON"))
	}
	return body, nil
}

// get performs a paced, retried GET. Not-found errors come back unwrapped.
func (f *HTTPFetcher) get(ctx context.Context, rawURL, key string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.LookupError(f.name, key, err)
	}

	var body []byte
	attempt := 0
	err = utils.RetryWithBackoff(ctx, f.retry, func() error {
		attempt++
		if attempt > 1 {
			f.logger.Debug("Retrying request", logging.String("key", key), logging.Int("attempt", attempt))
		}
		if err := f.limiter.WaitForKey(ctx, u.Host); err != nil {
			return err
		}
		return f.breaker.Execute(ctx, func() error {
			var reqErr error
			body, reqErr = f.do(ctx, u.String(), key)
			return reqErr
		})
	})
	if err == nil {
		return body, nil
	}
	if errors.IsType(err, errors.ErrTypeNotFound) {
		return nil, err
	}
	return nil, errors.LookupError(f.name, key, err)
}

func (f *HTTPFetcher) do(ctx context.Context, rawURL, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	req.Header.Set("Accept", "application/json, text/csv;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errors.NotFoundError(fmt.Sprintf("%s %s", f.name, key))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s returned %s", f.name, resp.Status)
	case resp.StatusCode >= 300:
		return nil, errors.ValidationError(fmt.Sprintf("%s returned %s", f.name, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", f.name, err)
	}
	return body, nil
}

// Not found, rejected requests, an open breaker and a finished context are
// final.
func retryable(err error) bool {
	switch errors.GetType(err) {
	case errors.ErrTypeNotFound, errors.ErrTypeValidation, errors.ErrTypeLookup:
		return false
	}
	return !(stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}
