package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insights/internal/common/errors"
)

func newTestFetcher(t *testing.T, srv *httptest.Server, path string) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(FetcherConfig{
		Name:            "organisation",
		URLTemplate:     srv.URL + path,
		Retries:         3,
		RetryDelay:      time.Millisecond,
		BreakerFailures: 10,
	}, srv.Client(), nil)
	require.NoError(t, err)
	return f
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orgid/GB-CHC-225922.json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"GB-CHC-225922","charityNumber":"225922"}`)
		case "/orgid/GB-CHC-html.json":
			fmt.Fprint(w, `<html>oops</html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, "/orgid/{}.json")
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		body, err := f.Fetch(ctx, "GB-CHC-225922")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"GB-CHC-225922","charityNumber":"225922"}`, string(body))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.Fetch(ctx, "GB-CHC-0")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := f.Fetch(ctx, "GB-CHC-html")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeLookup))
	})
}

func TestHTTPFetcher_EscapesKey(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.EscapedPath()
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, "/postcodes/{}.json")
	_, err := f.Fetch(context.Background(), "SE1 1AA")
	require.NoError(t, err)
	assert.Equal(t, "/postcodes/SE1%201AA.json", got)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, "/{}")
	body, err := f.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_DoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, "/{}")
	_, err := f.Fetch(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcher_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, "/{}")
	_, err := f.Fetch(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeLookup))
	assert.Contains(t, err.Error(), "organisation lookup failed for x")
}

func TestHTTPFetcher_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(FetcherConfig{
		Name:            "company",
		URLTemplate:     srv.URL + "/{}",
		Retries:         1,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, srv.Client(), nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.Fetch(context.Background(), fmt.Sprintf("k%d", i))
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, f.breaker.IsOpen())
}

func TestNewHTTPFetcher_RequiresTemplate(t *testing.T) {
	_, err := NewHTTPFetcher(FetcherConfig{Name: "x"}, nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestCompanyRegistry_StripsScheme(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
		fmt.Fprint(w, `{"primaryTopic":{"CompanyNumber":"04325234"}}`)
	}))
	defer srv.Close()

	reg, err := NewCompanyRegistry(FetcherConfig{Name: "company", URLTemplate: srv.URL + "/doc/company/{}.json"}, srv.Client(), nil)
	require.NoError(t, err)

	_, err = reg.Fetch(context.Background(), "GB-COH-04325234")
	require.NoError(t, err)
	assert.Equal(t, "/doc/company/04325234.json", got)

	_, err = reg.Fetch(context.Background(), "GB-COH-")
	assert.Error(t, err)
}

func TestGeocodeSource_FetchAll(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("types")
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, strings.Join([]string{
			"type,code,name",
			"laua,E09000007,Camden",
			"rgn,E12000007,London",
			`ctry,E92000001,"England"`,
		}, "\n"))
	}))
	defer srv.Close()

	src, err := NewGeocodeSource(FetcherConfig{Name: "geocodes", URLTemplate: srv.URL + "/areas/names.csv"}, PostcodeFields, srv.Client(), nil)
	require.NoError(t, err)

	names, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strings.Join(PostcodeFields, ","), query)
	assert.Equal(t, map[string]string{
		"laua-E09000007": "Camden",
		"rgn-E12000007":  "London",
		"ctry-E92000001": "England",
	}, names)
}

func TestParseNames_BadHeader(t *testing.T) {
	_, err := parseNames([]byte("a,b\n1,2\n"))
	assert.Error(t, err)
}
