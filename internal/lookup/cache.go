// Package lookup is the shared cache of external reference data. Entries are
// grouped by category (organisation records, company records, postcodes,
// geocode names); each category is an independent key space.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"

	"grant-insights/internal/redis"
)

// Category names a key space inside the lookup cache
type Category string

const (
	Organisation Category = "organisation"
	Company      Category = "company"
	Postcode     Category = "postcode"
	Geocodes     Category = "geocodes"
)

// Cache is safe for concurrent use by any number of pipeline runs. Writes are
// last-write-wins per key. Values are opaque bytes, JSON by convention.
type Cache interface {
	Exists(ctx context.Context, category Category) (bool, error)
	Has(ctx context.Context, category Category, key string) (bool, error)
	Get(ctx context.Context, category Category, key string) ([]byte, bool, error)
	Set(ctx context.Context, category Category, key string, value []byte) error
	SetMany(ctx context.Context, category Category, values map[string][]byte) error
	Keys(ctx context.Context, category Category) ([]string, error)
	Scan(ctx context.Context, category Category) Iterator
}

// Iterator walks the entries of a category. It is finite and each call to
// Cache.Scan starts a fresh walk.
//
//	it := cache.Scan(ctx, lookup.Postcode)
//	for it.Next() {
//		key, value := it.Key(), it.Value()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator interface {
	Next() bool
	Key() string
	Value() []byte
	Err() error
}

// RedisCache stores each category as one Redis hash named <prefix><category>
type RedisCache struct {
	client   *redis.Client
	prefix   string
	pageSize int64
}

// NewRedisCache creates a cache whose hashes are prefixed with prefix
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, pageSize: 500}
}

func (c *RedisCache) hash(category Category) string {
	return c.prefix + string(category)
}

// Exists reports whether the category holds any entries
func (c *RedisCache) Exists(ctx context.Context, category Category) (bool, error) {
	return c.client.Exists(ctx, c.hash(category))
}

func (c *RedisCache) Has(ctx context.Context, category Category, key string) (bool, error) {
	return c.client.HExists(ctx, c.hash(category), key)
}

func (c *RedisCache) Get(ctx context.Context, category Category, key string) ([]byte, bool, error) {
	return c.client.HGet(ctx, c.hash(category), key)
}

func (c *RedisCache) Set(ctx context.Context, category Category, key string, value []byte) error {
	return c.client.HSet(ctx, c.hash(category), key, value)
}

// SetMany writes several entries in one round trip
func (c *RedisCache) SetMany(ctx context.Context, category Category, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}
	return c.client.HSetMap(ctx, c.hash(category), fields)
}

func (c *RedisCache) Keys(ctx context.Context, category Category) ([]string, error) {
	return c.client.HKeys(ctx, c.hash(category))
}

// Scan pages through the category with HSCAN. Keys seen on an earlier page
// are not repeated.
func (c *RedisCache) Scan(ctx context.Context, category Category) Iterator {
	return &scanIterator{
		ctx:    ctx,
		client: c.client,
		hash:   c.hash(category),
		count:  c.pageSize,
		seen:   make(map[string]bool),
	}
}

type scanIterator struct {
	ctx    context.Context
	client *redis.Client
	hash   string
	count  int64

	cursor  uint64
	started bool
	page    []entry
	pos     int
	seen    map[string]bool
	current entry
	err     error
}

type entry struct {
	key   string
	value []byte
}

func (it *scanIterator) Next() bool {
	for it.pos >= len(it.page) {
		if it.err != nil || (it.started && it.cursor == 0) {
			return false
		}
		values, next, err := it.client.HScan(it.ctx, it.hash, it.cursor, it.count)
		if err != nil {
			it.err = err
			return false
		}
		it.started = true
		it.cursor = next
		it.page = it.page[:0]
		it.pos = 0
		for k, v := range values {
			if it.seen[k] {
				continue
			}
			it.seen[k] = true
			it.page = append(it.page, entry{key: k, value: v})
		}
	}
	it.current = it.page[it.pos]
	it.pos++
	return true
}

func (it *scanIterator) Key() string   { return it.current.key }
func (it *scanIterator) Value() []byte { return it.current.value }
func (it *scanIterator) Err() error    { return it.err }

// GetJSON reads key and unmarshals it into v. A value that is not valid JSON
// is reported as an error, a missing key as found=false.
func GetJSON(ctx context.Context, c Cache, category Category, key string, v any) (bool, error) {
	raw, found, err := c.Get(ctx, category, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", category, key, err)
	}
	return true, nil
}
