package lro

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "lro:op:"

// RedisCache is the shared backend for multi-instance deployments. Entries
// carry a TTL instead of a size bound. Redis errors degrade to cache misses;
// the gateway then falls back to rotation, which is the same behavior as a
// genuinely unknown operation.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a cache on top of an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Remember(ctx context.Context, op, projectID string) {
	if err := c.client.Set(ctx, redisKeyPrefix+op, projectID, c.ttl).Err(); err != nil {
		log.WithError(err).Warnf("Failed to store operation mapping: %s", op)
	}
}

func (c *RedisCache) Lookup(ctx context.Context, op string) (string, bool) {
	projectID, err := c.client.Get(ctx, redisKeyPrefix+op).Result()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Warnf("Operation mapping lookup failed: %s", op)
		}
		return "", false
	}
	return projectID, true
}

func (c *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var n int
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		log.WithError(err).Warn("Operation mapping scan failed")
	}
	return n
}
