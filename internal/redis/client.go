// Package redis wraps go-redis with the key and hash operations used by the
// lookup cache, the dataset cache and job progress tracking. Every backend
// failure is returned as a cache_backend AppError; a missing key is reported
// through a found flag, never as an error.
package redis

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"grant-insights/internal/common/errors"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.CacheBackendError("connect", fmt.Errorf("failed to connect to Redis at %s: %w", config.Address, err))
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wrap("ping", c.rdb.Ping(ctx).Err())
}

// GetGoRedisClient exposes the underlying client for redsync
func (c *Client) GetGoRedisClient() *redis.Client {
	return c.rdb
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.CacheBackendError(op, err)
}

// Key-value operations

func (c *Client) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return wrap("set", c.rdb.Set(ctx, key, value, expiration).Err())
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return data, true, nil
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return wrap("del", c.rdb.Del(ctx, keys...).Err())
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.rdb.Exists(ctx, key).Result()
	return count > 0, wrap("exists", err)
}

func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return wrap("expire", c.rdb.Expire(ctx, key, expiration).Err())
}

// Hash operations. A category of the lookup cache, the dataset metadata index
// and each job status record are all single hashes.

func (c *Client) HSet(ctx context.Context, key, field string, value []byte) error {
	return wrap("hset", c.rdb.HSet(ctx, key, field, value).Err())
}

// HSetMap writes several fields of one hash in a single round trip
func (c *Client) HSetMap(ctx context.Context, key string, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}
	return wrap("hset", c.rdb.HSet(ctx, key, values).Err())
}

func (c *Client) HGet(ctx context.Context, key, field string) ([]byte, bool, error) {
	data, err := c.rdb.HGet(ctx, key, field).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("hget", err)
	}
	return data, true, nil
}

func (c *Client) HExists(ctx context.Context, key, field string) (bool, error) {
	ok, err := c.rdb.HExists(ctx, key, field).Result()
	return ok, wrap("hexists", err)
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	return wrap("hdel", c.rdb.HDel(ctx, key, fields...).Err())
}

func (c *Client) HLen(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.HLen(ctx, key).Result()
	return n, wrap("hlen", err)
}

func (c *Client) HKeys(ctx context.Context, key string) ([]string, error) {
	keys, err := c.rdb.HKeys(ctx, key).Result()
	return keys, wrap("hkeys", err)
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	values, err := c.rdb.HGetAll(ctx, key).Result()
	return values, wrap("hgetall", err)
}

// HScan returns one page of field/value pairs and the cursor for the next
// page; a zero cursor means the scan is complete.
func (c *Client) HScan(ctx context.Context, key string, cursor uint64, count int64) (map[string][]byte, uint64, error) {
	flat, next, err := c.rdb.HScan(ctx, key, cursor, "", count).Result()
	if err != nil {
		return nil, 0, wrap("hscan", err)
	}
	page := make(map[string][]byte, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		page[flat[i]] = []byte(flat[i+1])
	}
	return page, next, nil
}
