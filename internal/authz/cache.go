package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "authz:perms:version"

// Cache stores computed effective-permission sets in Redis. Entries embed a
// global version counter in their key; bumping the version on any role grant,
// assignment or composite-edge mutation orphans every stale entry at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. client may be nil, in which case
// every operation is a no-op miss.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) key(ctx context.Context, userID int64, scope Scope) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("authz:perms:%d:%d:%s", ver, userID, scope.Key()), nil
}

// Get returns a cached permission set and whether it was present.
func (c *Cache) Get(ctx context.Context, userID int64, scope Scope) ([]Permission, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	key, err := c.key(ctx, userID, scope)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var perms []Permission
	if err := json.Unmarshal(payload, &perms); err != nil {
		return nil, false, err
	}
	return perms, true, nil
}

// Put stores a computed permission set under the current version.
func (c *Cache) Put(ctx context.Context, userID int64, scope Scope, perms []Permission) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, userID, scope)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate bumps the global version, orphaning all cached sets. Called on
// any mutation of role grants, user assignments or composite-role edges.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
