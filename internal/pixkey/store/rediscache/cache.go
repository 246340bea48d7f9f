// Package rediscache backs the decode cache and the job lock with Redis so
// both are shared by every worker replica.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pixkeys/internal/pixkey/models"
)

const decodeKeyPrefix = "pixkeys:decode:"

// DecodeCache stores registry decode results as JSON with a TTL.
type DecodeCache struct {
	client redis.UniversalClient
}

func NewDecodeCache(client redis.UniversalClient) *DecodeCache {
	return &DecodeCache{client: client}
}

func (c *DecodeCache) Get(ctx context.Context, hash string) (*models.DecodeResult, bool, error) {
	raw, err := c.client.Get(ctx, decodeKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get decode cache: %w", err)
	}
	var result models.DecodeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return &result, true, nil
}

func (c *DecodeCache) Set(ctx context.Context, hash string, result *models.DecodeResult, ttl time.Duration) error {
	if result == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode decode cache: %w", err)
	}
	if err := c.client.Set(ctx, decodeKeyPrefix+hash, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set decode cache: %w", err)
	}
	return nil
}
