package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
)

const maxDownloadSize = 512 << 20

// Downloader fetches published datasets with retries on transient failures
type Downloader struct {
	client *retryablehttp.Client
}

// NewDownloader wraps httpClient. retries is the number of retries after the
// first attempt.
func NewDownloader(httpClient *http.Client, retries int, logger logging.Logger) *Downloader {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	client := retryablehttp.NewClient()
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 10 * time.Second
	client.Logger = leveledLogger{logger.WithFields(logging.String("component", "downloader"))}
	return &Downloader{client: client}
}

// Head returns the response headers for url and its freshness token: the
// ETag if there is one, else Last-Modified. Servers that reject HEAD give an
// empty token and no error.
func (d *Downloader) Head(ctx context.Context, url string) (token string, headers map[string]string, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", nil, errors.ValidationError(err.Error())
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", nil, errors.LookupError("download", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", nil, nil
	}
	headers = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	token = resp.Header.Get("ETag")
	if token == "" {
		token = resp.Header.Get("Last-Modified")
	}
	return token, headers, nil
}

// Get downloads url, returning the body and its declared content type
func (d *Downloader) Get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errors.ValidationError(err.Error())
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", errors.LookupError("download", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", errors.InputError(fmt.Sprintf("Could not find a file at %s", url))
	}
	if resp.StatusCode >= 400 {
		return nil, "", errors.InputError(fmt.Sprintf("Downloading %s failed: %s", url, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, "", errors.LookupError("download", url, err)
	}
	if len(body) > maxDownloadSize {
		return nil, "", errors.InputError(fmt.Sprintf("The file at %s is too large", url))
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// leveledLogger adapts Logger to retryablehttp.LeveledLogger
type leveledLogger struct {
	logger logging.Logger
}

func fields(kv []interface{}) []logging.Field {
	out := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logging.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return out
}

func (l leveledLogger) Error(msg string, kv ...interface{}) {
	l.logger.Error(msg, nil, fields(kv)...)
}
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.logger.Debug(msg, fields(kv)...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug(msg, fields(kv)...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn(msg, fields(kv)...) }
