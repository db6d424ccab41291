package scorelead

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lead-intake-workers/internal/models"
)

const cacheKeyPrefix = "lead:score:"

// ScoreCache remembers successful scores by transcript.
type ScoreCache interface {
	Get(ctx context.Context, transcript string) (score int, found bool, err error)
	Set(ctx context.Context, transcript string, score int) error
}

// CacheKey is lead:score:<hex sha256 of the transcript>.
func CacheKey(transcript string) string {
	return cacheKeyPrefix + models.TranscriptDigest(transcript)
}

type RedisScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisScoreCache(client *redis.Client, ttl time.Duration) *RedisScoreCache {
	return &RedisScoreCache{client: client, ttl: ttl}
}

func (c *RedisScoreCache) Get(ctx context.Context, transcript string) (int, bool, error) {
	val, err := c.client.Get(ctx, CacheKey(transcript)).Result()
	if stderrors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	score, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (c *RedisScoreCache) Set(ctx context.Context, transcript string, score int) error {
	return c.client.Set(ctx, CacheKey(transcript), strconv.Itoa(score), c.ttl).Err()
}
