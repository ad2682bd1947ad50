package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// AnswerCache memoizes composed retrieval answers per (change set, corpus, query).
// Implementations must never fail the caller; misses and errors look the same.
type AnswerCache interface {
	Get(ctx context.Context, changeSetID string, kind Kind, query string) (string, bool)
	Set(ctx context.Context, changeSetID string, kind Kind, query, answer string)
	Purge(ctx context.Context, changeSetID string) error
}

type NopCache struct{}

func (NopCache) Get(context.Context, string, Kind, string) (string, bool) { return "", false }
func (NopCache) Set(context.Context, string, Kind, string, string)        {}
func (NopCache) Purge(context.Context, string) error                      { return nil }

const cachePrefix = "crv:answer:"

func cacheKey(changeSetID string, kind Kind, query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s%s:%s:%s", cachePrefix, changeSetID, kind, hex.EncodeToString(sum[:]))
}

type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.ILogger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log logger.ILogger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, logger: log}
}

func (c *RedisCache) Get(ctx context.Context, changeSetID string, kind Kind, query string) (string, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(changeSetID, kind, query)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn("AnswerCache", "Redis get failed", map[string]interface{}{"error": err.Error()})
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, changeSetID string, kind Kind, query, answer string) {
	if err := c.rdb.Set(ctx, cacheKey(changeSetID, kind, query), answer, c.ttl).Err(); err != nil {
		c.logger.Warn("AnswerCache", "Redis set failed", map[string]interface{}{"error": err.Error()})
	}
}

// Purge drops every cached answer of a change set, used after re-ingestion.
func (c *RedisCache) Purge(ctx context.Context, changeSetID string) error {
	iter := c.rdb.Scan(ctx, 0, cachePrefix+changeSetID+":*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
