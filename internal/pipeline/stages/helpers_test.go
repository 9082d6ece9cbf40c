package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/lookup"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/redis"
	"grant-insights/internal/table"
)

// fakeFetcher serves records from a map; keys in fail return a lookup error
type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]string
	fail    map[string]bool
	calls   map[string]int
}

func newFakeFetcher(records map[string]string, fail ...string) *fakeFetcher {
	f := &fakeFetcher{records: records, fail: make(map[string]bool), calls: make(map[string]int)}
	for _, k := range fail {
		f.fail[k] = true
	}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.fail[key] {
		return nil, errors.LookupError("fake", key, fmt.Errorf("connection reset"))
	}
	rec, ok := f.records[key]
	if !ok {
		return nil, errors.NotFoundError(key)
	}
	return []byte(rec), nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type testBed struct {
	env   *pipeline.Env
	cache *lookup.RedisCache
	mr    *miniredis.Miniredis
}

func newTestBed(t *testing.T) *testBed {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	cache := lookup.NewRedisCache(client, "lookup_")
	env := &pipeline.Env{
		Lookup:        cache,
		Geocodes:      lookup.NewGeocodeMap(cache, nil, nil),
		Organisations: newFakeFetcher(nil),
		Companies:     newFakeFetcher(nil),
		Postcodes:     newFakeFetcher(nil),
		CompanyLimit:  100,
		Logger:        logging.GetGlobalLogger(),
		Now:           func() time.Time { return testNow },
	}
	return &testBed{env: env, cache: cache, mr: mr}
}

func (b *testBed) put(t *testing.T, category lookup.Category, key, value string) {
	t.Helper()
	require.NoError(t, b.cache.Set(context.Background(), category, key, []byte(value)))
}

func (b *testBed) putGeocode(t *testing.T, key, name string) {
	t.Helper()
	raw, err := json.Marshal(name)
	require.NoError(t, err)
	require.NoError(t, b.cache.Set(context.Background(), lookup.Geocodes, key, raw))
}

func strCol(name string, values ...any) *table.Column {
	return &table.Column{Name: name, Kind: table.String, Values: values}
}

func mustTable(t *testing.T, cols ...*table.Column) *table.Table {
	t.Helper()
	tbl, err := table.FromColumns(cols...)
	require.NoError(t, err)
	return tbl
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
