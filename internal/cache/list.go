// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// list.go caches the JSON body of public post listings. Any post or
// category change clears every cached listing, since a single change can
// move posts between pages.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"postdesk/internal/models"
)

const (
	// listKeyPrefix is the Valkey key prefix for cached listings.
	listKeyPrefix = "posts:list:"

	// DefaultListTTL is how long a listing stays cached.
	DefaultListTTL = 2 * time.Minute
)

// ListCache manages cached post listings in Valkey.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListCache creates a listing cache backed by the given Valkey client.
func NewListCache(client *redis.Client, ttl time.Duration) *ListCache {
	if ttl == 0 {
		ttl = DefaultListTTL
	}
	return &ListCache{client: client, ttl: ttl}
}

// Get returns the cached body for key.
func (lc *ListCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := lc.client.Get(ctx, listKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("list cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("list cache hit", "key", key)
	return val, true
}

// Set stores a listing body with the configured TTL.
func (lc *ListCache) Set(ctx context.Context, key string, body []byte) {
	if err := lc.client.Set(ctx, listKeyPrefix+key, body, lc.ttl).Err(); err != nil {
		slog.Warn("list cache set error", "key", key, "error", err)
	}
}

// InvalidateAll removes all cached listings by scanning for the prefix.
func (lc *ListCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := lc.client.Scan(ctx, cursor, listKeyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("list cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := lc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("list cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Debug("list cache cleared", "deleted", deleted)
	}
}

// PostChanged clears cached listings after a post is created or modified.
func (lc *ListCache) PostChanged(ctx context.Context, _ *models.Post) {
	lc.InvalidateAll(ctx)
}

// PostDeleted clears cached listings after a post is removed.
func (lc *ListCache) PostDeleted(ctx context.Context, _ uuid.UUID) {
	lc.InvalidateAll(ctx)
}

// ListKey returns the cache key for a public listing filter.
func ListKey(f models.PostFilter) string {
	cat := ""
	if f.CategoryID != nil {
		cat = f.CategoryID.String()
	}
	return fmt.Sprintf("p=%d:l=%d:c=%s:t=%s:a=%s", f.Page, f.Limit, cat, f.Tag, f.AuthorID)
}
