package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillscribe/portal/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for API key auth context cache.
	authCachePrefix = "auth:ctx:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
	// authKeyIndexPrefix maps a key id to its auth cache key for revocation.
	authKeyIndexPrefix = "auth:key:"
	// revokedSessionPrefix marks session ids that were signed out.
	revokedSessionPrefix = "auth:revoked:"
)

// CachedAuthContext represents auth context stored in Redis.
type CachedAuthContext struct {
	KeyID     string   `json:"key_id"`
	KeyPrefix string   `json:"key_prefix"`
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	Scopes    []string `json:"scopes"`
}

// GetAuthContext retrieves a cached API key auth context by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	key := authCachePrefix + cacheKey

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached CachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		UserID:    cached.UserID,
		Email:     cached.Email,
		Role:      cached.Role,
		Method:    model.AuthMethodAPIKey,
		KeyID:     cached.KeyID,
		KeyPrefix: cached.KeyPrefix,
		Scopes:    cached.Scopes,
	}, nil
}

// SetAuthContext caches an API key auth context.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	key := authCachePrefix + cacheKey

	cached := CachedAuthContext{
		KeyID:     auth.KeyID,
		KeyPrefix: auth.KeyPrefix,
		UserID:    auth.UserID,
		Email:     auth.Email,
		Role:      auth.Role,
		Scopes:    auth.Scopes,
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, authCacheTTL)
	if auth.KeyID != "" {
		pipe.Set(ctx, authKeyIndexPrefix+auth.KeyID, cacheKey, authCacheTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache auth context: %w", err)
	}
	return nil
}

// DeleteAuthContext removes a cached auth context.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	key := authCachePrefix + cacheKey
	return c.client.Del(ctx, key).Err()
}

// InvalidateAPIKey drops the cached auth context of a key by its id.
// Used when a key is revoked or rotated.
func (c *Cache) InvalidateAPIKey(ctx context.Context, keyID string) error {
	indexKey := authKeyIndexPrefix + keyID
	cacheKey, err := c.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup auth cache index: %w", err)
	}
	if err := c.client.Del(ctx, authCachePrefix+cacheKey, indexKey).Err(); err != nil {
		return fmt.Errorf("invalidate api key: %w", err)
	}
	return nil
}

// RevokeSession marks a session id as signed out until it would have
// expired anyway.
func (c *Cache) RevokeSession(ctx context.Context, sessionID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether a session id was signed out.
func (c *Cache) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	err := c.client.Get(ctx, revokedSessionPrefix+sessionID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return true, nil
}
