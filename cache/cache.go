// Package cache provides a typed cache over redis. A nil client degrades to
// a no-op so callers never branch on whether redis is configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ICache defines a general caching interface.
type ICache[T any] interface {
	Get(ctx context.Context, key string) (*T, error)
	Set(ctx context.Context, key string, data *T, expire ...time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache implements ICache on a redis client, namespacing keys under a
// prefix.
type Cache[T any] struct {
	rc     *redis.Client
	prefix string
}

// NewCache creates a new Cache instance.
func NewCache[T any](rc *redis.Client, prefix string) *Cache[T] {
	return &Cache[T]{rc: rc, prefix: prefix}
}

func (c *Cache[T]) key(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

// Get retrieves a single item. A miss returns (nil, nil).
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	if c.rc == nil {
		return nil, nil
	}

	result, err := c.rc.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var row T
	if err = json.Unmarshal([]byte(result), &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &row, nil
}

// Set saves a single item, with an optional expiry.
func (c *Cache[T]) Set(ctx context.Context, key string, data *T, expire ...time.Duration) error {
	if c.rc == nil {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	ttl := time.Duration(0)
	if len(expire) > 0 {
		ttl = expire[0]
	}
	if err := c.rc.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Delete removes a single item.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if c.rc == nil {
		return nil
	}
	if err := c.rc.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}
