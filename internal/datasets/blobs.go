package datasets

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/gcsblob"  // gs:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	_ "gocloud.dev/blob/s3blob"   // s3:// buckets
	"gocloud.dev/gcerrors"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/redis"
)

// BlobStore holds encoded tables by dataset id
type BlobStore interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, bool, error)
	Delete(ctx context.Context, id string) error
}

// RedisBlobs keeps each table under the key <prefix><id>
type RedisBlobs struct {
	client *redis.Client
	prefix string
}

func NewRedisBlobs(client *redis.Client, prefix string) *RedisBlobs {
	return &RedisBlobs{client: client, prefix: prefix}
}

func (r *RedisBlobs) Put(ctx context.Context, id string, data []byte) error {
	return r.client.Set(ctx, r.prefix+id, data, 0)
}

func (r *RedisBlobs) Get(ctx context.Context, id string) ([]byte, bool, error) {
	return r.client.Get(ctx, r.prefix+id)
}

func (r *RedisBlobs) Delete(ctx context.Context, id string) error {
	return r.client.Delete(ctx, r.prefix+id)
}

// BucketBlobs keeps each table as <id>.json.zst in a gocloud bucket
type BucketBlobs struct {
	bucket *blob.Bucket
}

// OpenBucket opens a bucket URL such as file:///var/lib/insights, mem://,
// gs://name or s3://name?region=eu-west-2
func OpenBucket(ctx context.Context, url string) (*BucketBlobs, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("open bucket %s: %v", url, err))
	}
	return &BucketBlobs{bucket: bucket}, nil
}

// NewBucketBlobs wraps an already opened bucket
func NewBucketBlobs(bucket *blob.Bucket) *BucketBlobs {
	return &BucketBlobs{bucket: bucket}
}

func objectKey(id string) string {
	return strings.TrimSpace(id) + ".json.zst"
}

func (b *BucketBlobs) Put(ctx context.Context, id string, data []byte) error {
	key := objectKey(id)
	w, err := b.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "application/zstd"})
	if err != nil {
		return errors.CacheBackendError("bucket write", fmt.Errorf("create writer for %s: %w", key, err))
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.CacheBackendError("bucket write", fmt.Errorf("write %s: %w", key, err))
	}
	if err := w.Close(); err != nil {
		return errors.CacheBackendError("bucket write", fmt.Errorf("close writer for %s: %w", key, err))
	}
	return nil
}

func (b *BucketBlobs) Get(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := b.bucket.ReadAll(ctx, objectKey(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, errors.CacheBackendError("bucket read", err)
	}
	return data, true, nil
}

func (b *BucketBlobs) Delete(ctx context.Context, id string) error {
	err := b.bucket.Delete(ctx, objectKey(id))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return errors.CacheBackendError("bucket delete", err)
	}
	return nil
}

// Close releases the bucket
func (b *BucketBlobs) Close() error {
	return b.bucket.Close()
}
