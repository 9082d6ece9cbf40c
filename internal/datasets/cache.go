package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"grant-insights/internal/common/logging"
	"grant-insights/internal/redis"
	"grant-insights/internal/table"
)

const filesHash = "files"

// Cache stores enriched tables with their metadata. Metadata is written after
// the blob, so a metadata record always points at a complete table.
type Cache struct {
	client *redis.Client
	blobs  BlobStore
	logger logging.Logger
	now    func() time.Time
}

// NewCache creates a dataset cache
func NewCache(client *redis.Client, blobs BlobStore, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Cache{
		client: client,
		blobs:  blobs,
		logger: logger.WithFields(logging.String("component", "dataset_cache")),
		now:    time.Now,
	}
}

// Metadata returns the metadata record for id, expired or not
func (c *Cache) Metadata(ctx context.Context, id string) (*Metadata, bool, error) {
	raw, found, err := c.client.HGet(ctx, filesHash, id)
	if err != nil || !found {
		return nil, false, err
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		c.logger.Warn("Unreadable dataset metadata", logging.String("dataset_id", id), logging.Err(err))
		return nil, false, nil
	}
	return &meta, true, nil
}

// Get returns the table and metadata for id. Missing, expired and unreadable
// entries are reported as found=false.
func (c *Cache) Get(ctx context.Context, id string) (*table.Table, *Metadata, bool, error) {
	logger := c.logger.WithFields(logging.String("dataset_id", id))

	meta, found, err := c.Metadata(ctx, id)
	if err != nil {
		return nil, nil, false, err
	}
	if !found {
		logger.Debug("Dataset not found")
		return nil, nil, false, nil
	}
	if meta.Expired(c.now()) {
		logger.Info("Dataset expired", logging.String("expires", meta.Expires.Format(time.RFC3339)))
		return nil, nil, false, nil
	}

	data, found, err := c.blobs.Get(ctx, id)
	if err != nil {
		return nil, nil, false, err
	}
	if !found {
		logger.Warn("Dataset metadata found without its table")
		return nil, nil, false, nil
	}
	t, err := table.Decode(data)
	if err != nil {
		logger.Warn("Dataset could not be decoded", logging.Err(err))
		return nil, nil, false, nil
	}
	logger.Debug("Retrieved dataset", logging.Int("rows", t.Len()))
	return t, meta, true, nil
}

// Put stores t under id. Funders, dates and row count are computed from t;
// the remaining metadata fields are kept from meta.
func (c *Cache) Put(ctx context.Context, id string, t *table.Table, meta Metadata) (*Metadata, error) {
	data, err := table.Encode(t)
	if err != nil {
		return nil, err
	}
	if err := c.blobs.Put(ctx, id, data); err != nil {
		return nil, err
	}

	meta = MetadataFor(t, meta)
	meta.ID = id
	if meta.Created.IsZero() {
		meta.Created = c.now().UTC()
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := c.client.HSet(ctx, filesHash, id, raw); err != nil {
		return nil, err
	}

	c.logger.Info("Dataset saved",
		logging.String("dataset_id", id),
		logging.Int("rows", t.Len()),
		logging.Int("bytes", len(data)),
	)
	return &meta, nil
}

// Delete removes the table and its metadata
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.blobs.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.client.HDel(ctx, filesHash, id); err != nil {
		return err
	}
	c.logger.Info("Dataset removed", logging.String("dataset_id", id))
	return nil
}

// List returns the metadata of every cached dataset, newest first. Expired
// entries are included.
func (c *Cache) List(ctx context.Context) ([]Metadata, error) {
	all, err := c.client.HGetAll(ctx, filesHash)
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, 0, len(all))
	for id, raw := range all {
		var meta Metadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			c.logger.Warn("Unreadable dataset metadata", logging.String("dataset_id", id), logging.Err(err))
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
