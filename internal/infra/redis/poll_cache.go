package redis

import (
	"context"
	"time"
)

// PollCache keeps the latest provider status payload per task for a few
// seconds, so an aggressively refreshing browser does not turn into one
// provider call per refresh.
type PollCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewPollCache(client RedisClient, ttl time.Duration) *PollCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &PollCache{client: client, ttl: ttl}
}

func pollKey(key string) string { return "poll_status:" + key }

// Get returns the cached payload and whether it was present. Errors
// collapse into a miss; the cache is best effort.
func (c *PollCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, pollKey(key))
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (c *PollCache) Set(ctx context.Context, key, payload string) {
	_ = c.client.Set(ctx, pollKey(key), payload, c.ttl)
}
