package clients

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
)

// PostcodeFields are the postcode attributes kept by the enrichment, and the
// area types whose names are fetched in bulk
var PostcodeFields = []string{"ctry", "cty", "laua", "pcon", "rgn", "imd", "ru11ind", "oac11", "lat", "long"}

// GeocodeSource downloads the area names CSV (columns type, code, name)
type GeocodeSource struct {
	fetcher *HTTPFetcher
	types   []string
}

// NewGeocodeSource creates a source for the given area types. cfg.URLTemplate
// is the plain CSV URL.
func NewGeocodeSource(cfg FetcherConfig, types []string, client *http.Client, logger logging.Logger) (*GeocodeSource, error) {
	f, err := NewHTTPFetcher(cfg, client, logger)
	if err != nil {
		return nil, err
	}
	return &GeocodeSource{fetcher: f, types: types}, nil
}

// FetchAll returns every area name keyed "<type>-<code>"
func (g *GeocodeSource) FetchAll(ctx context.Context) (map[string]string, error) {
	u, err := url.Parse(g.fetcher.template)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("geocodes url: %v", err))
	}
	if len(g.types) > 0 {
		q := u.Query()
		q.Set("types", strings.Join(g.types, ","))
		u.RawQuery = q.Encode()
	}

	body, err := g.fetcher.get(ctx, u.String(), "names")
	if err != nil {
		return nil, err
	}
	names, err := parseNames(body)
	if err != nil {
		return nil, errors.LookupError(g.fetcher.name, "names", err)
	}
	return names, nil
}

func parseNames(body []byte) (map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	typeIdx, ok1 := col["type"]
	codeIdx, ok2 := col["code"]
	nameIdx, ok3 := col["name"]
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("expected type, code and name columns, got %v", header)
	}

	names := make(map[string]string)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) <= typeIdx || len(rec) <= codeIdx || len(rec) <= nameIdx {
			continue
		}
		names[rec[typeIdx]+"-"+rec[codeIdx]] = rec[nameIdx]
	}
	return names, nil
}
