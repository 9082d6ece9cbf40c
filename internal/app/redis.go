package app

import (
	"context"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/locks"
	"grant-insights/internal/lookup"
	"grant-insights/internal/redis"
)

// initializeRedis connects the shared backend. Unlike the registries, Redis is
// required: both caches and the job status live there.
func (app *App) initializeRedis(ctx context.Context) error {
	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		return errors.CacheBackendError("connect", err)
	}
	if err := redisClient.Health(ctx); err != nil {
		redisClient.Close()
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}

func (app *App) initializeLookup() error {
	locker, err := locks.NewRedsyncManager(app.RedisClient)
	if err != nil {
		return err
	}
	app.Locker = locker
	app.Lookup = lookup.NewRedisCache(app.RedisClient, app.Config.LookupPrefix)
	app.Geocodes = lookup.NewGeocodeMap(app.Lookup, locker, app.Logger)
	app.Logger.Info("Lookup cache: Enabled", logging.String("prefix", app.Config.LookupPrefix))
	return nil
}
