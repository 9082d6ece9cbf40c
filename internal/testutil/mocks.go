package testutil

import (
	"context"
	"sync"

	"grant-insights/internal/common/errors"
)

// FakeFetcher is an in-memory registry. Keys in Fail return a lookup error,
// keys without a record are not found.
type FakeFetcher struct {
	mu      sync.Mutex
	records map[string]string
	fail    map[string]bool
	calls   map[string]int
}

// NewFakeFetcher serves records, failing for every key in fail
func NewFakeFetcher(records map[string]string, fail ...string) *FakeFetcher {
	f := &FakeFetcher{records: records, fail: make(map[string]bool), calls: make(map[string]int)}
	for _, k := range fail {
		f.fail[k] = true
	}
	return f
}

func (f *FakeFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail[key] {
		return nil, errors.LookupError("fake", key, ErrTimeout)
	}
	if rec, ok := f.records[key]; ok {
		return []byte(rec), nil
	}
	return nil, errors.NotFoundError(key)
}

// Fail makes key fail from now on
func (f *FakeFetcher) Fail(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[key] = true
}

// Calls returns how often key was fetched
func (f *FakeFetcher) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// Total returns the number of fetches of any key
func (f *FakeFetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// StaticGeocodes is a geocode source serving a fixed map
type StaticGeocodes map[string]string

func (g StaticGeocodes) FetchAll(context.Context) (map[string]string, error) {
	return g, nil
}
