package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tradewire/tradewire/internal/profile"
)

// RedisCache stores canonical records in redis so every instance observes a
// refresh promptly.
type RedisCache struct {
	Client *redis.Client
	Prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client, Prefix: "user_profile:"}
}

func (c *RedisCache) key(id uuid.UUID) string { return c.Prefix + id.String() }

func (c *RedisCache) Get(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	val, err := c.Client.Get(ctx, c.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec profile.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("decode cached record: %w", err)
	}
	return &rec, nil
}

func (c *RedisCache) Set(ctx context.Context, rec *profile.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.key(rec.ID), data, ttl).Err()
}
