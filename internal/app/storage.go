package app

import (
	"context"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/datasets"
)

// initializeDatasets picks where enriched tables are stored. Metadata always
// lives in Redis.
func (app *App) initializeDatasets(ctx context.Context) error {
	var blobs datasets.BlobStore

	switch app.Config.FileCache {
	case "bucket":
		bucket, err := datasets.OpenBucket(ctx, app.Config.FileCacheBucket)
		if err != nil {
			return err
		}
		app.bucket = bucket
		blobs = bucket
		app.Logger.Info("Dataset cache: Bucket", logging.String("url", app.Config.FileCacheBucket))
	case "redis", "":
		blobs = datasets.NewRedisBlobs(app.RedisClient, app.Config.CachePrefix)
		app.Logger.Info("Dataset cache: Redis", logging.String("prefix", app.Config.CachePrefix))
	default:
		return errors.ConfigError("unknown FILE_CACHE " + app.Config.FileCache)
	}

	app.Datasets = datasets.NewCache(app.RedisClient, blobs, app.Logger)
	return nil
}
