package lookup

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"grant-insights/internal/common/logging"
	"grant-insights/internal/locks"
)

// GeocodeSource fetches every area name at once, keyed "<area type>-<code>"
type GeocodeSource interface {
	FetchAll(ctx context.Context) (map[string]string, error)
}

// GeocodeMap resolves (area type, code) pairs to area names. Names are read
// from the geocodes category and kept in a process-local tier.
type GeocodeMap struct {
	cache  Cache
	locker locks.Locker
	local  *gocache.Cache
	logger logging.Logger
}

const geocodeLockExpiry = 2 * time.Minute

// NewGeocodeMap creates a map over cache. locker may be nil in single-process use.
func NewGeocodeMap(cache Cache, locker locks.Locker, logger logging.Logger) *GeocodeMap {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &GeocodeMap{
		cache:  cache,
		locker: locker,
		local:  gocache.New(time.Hour, 10*time.Minute),
		logger: logger,
	}
}

// Ensure populates the geocodes category from src if it is absent or empty.
// Concurrent workers serialise on a lock and re-check, so the bulk fetch runs
// once.
func (g *GeocodeMap) Ensure(ctx context.Context, src GeocodeSource) error {
	exists, err := g.cache.Exists(ctx, Geocodes)
	if err != nil || exists {
		return err
	}

	if g.locker != nil {
		lock, err := g.locker.AcquireLock(ctx, "geocodes", geocodeLockExpiry)
		if err != nil {
			return err
		}
		defer lock.Release(context.Background())

		if exists, err = g.cache.Exists(ctx, Geocodes); err != nil || exists {
			return err
		}
	}

	names, err := src.FetchAll(ctx)
	if err != nil {
		return err
	}
	values := make(map[string][]byte, len(names))
	for k, name := range names {
		raw, err := json.Marshal(name)
		if err != nil {
			return err
		}
		values[k] = raw
	}
	if err := g.cache.SetMany(ctx, Geocodes, values); err != nil {
		return err
	}
	g.logger.Info("Populated geocode names", logging.Int("count", len(values)))
	return nil
}

// Name returns the name of the area, or code itself when it is unknown.
// Only backend failures are errors.
func (g *GeocodeMap) Name(ctx context.Context, areaType, code string) (string, error) {
	key := areaType + "-" + code
	if name, ok := g.local.Get(key); ok {
		return name.(string), nil
	}

	var name string
	found, err := GetJSON(ctx, g.cache, Geocodes, key, &name)
	if err != nil && !found {
		return code, err
	}
	if err != nil || name == "" {
		return code, nil
	}
	g.local.SetDefault(key, name)
	return name, nil
}
