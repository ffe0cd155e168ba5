package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/snapshot"
)

const (
	// Hash with the document JSON under "doc" and its lastUpdated in unix
	// milliseconds under "ver".
	snapshotKeyPrefix = "models:snapshot:v2:"

	// DefaultSnapshotTTL is the TTL for cached snapshot documents.
	DefaultSnapshotTTL = 10 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// storeIfNotOlder refuses a document older than the cached one, so a reader
// holding a pre-refresh load cannot overwrite the refreshed entry.
// KEYS[1]=key ARGV[1]=doc ARGV[2]=ver ARGV[3]=ttl ms. Returns 1 if stored.
var storeIfNotOlder = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ver')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'doc', ARGV[1], 'ver', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// GetSnapshot retrieves a cached snapshot document for a provider.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetSnapshot(ctx context.Context, p model.Provider) (*snapshot.Document, error) {
	key := snapshotKeyPrefix + string(p)
	data, err := c.client.HGet(ctx, key, "doc").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get snapshot failed: %w", err)
	}

	var doc snapshot.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Corrupted entry, drop it and report a miss
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	return &doc, nil
}

// SetSnapshot caches doc unless the cached entry has a newer lastUpdated.
// It reports whether doc was stored. A non-positive ttl uses
// DefaultSnapshotTTL.
func (c *Cache) SetSnapshot(ctx context.Context, p model.Provider, doc *snapshot.Document, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	updated, err := doc.UpdatedAt()
	if err != nil {
		return false, fmt.Errorf("snapshot lastUpdated: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}

	stored, err := storeIfNotOlder.Run(ctx, c.client,
		[]string{snapshotKeyPrefix + string(p)},
		data, updated.UnixMilli(), ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return stored == 1, nil
}

// DeleteSnapshot removes a cached snapshot so the next read goes to the store.
func (c *Cache) DeleteSnapshot(ctx context.Context, p model.Provider) error {
	if err := c.client.Del(ctx, snapshotKeyPrefix+string(p)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from cache: %w", err)
	}
	return nil
}
