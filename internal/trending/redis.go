// SPDX-License-Identifier: MIT

package trending

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultKey is the sorted set holding post view scores.
const DefaultKey = "minipress:trending"

// redisTracker implements Tracker on a Redis sorted set.
type redisTracker struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// RedisConfig holds Redis connection configuration for the tracker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // sorted set key, defaults to DefaultKey
}

// NewRedis creates a Redis-backed tracker and verifies connectivity.
func NewRedis(cfg RedisConfig, logger zerolog.Logger) (Tracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Str("key", key).
		Msg("connected to Redis trending tracker")

	return &redisTracker{client: client, key: key, logger: logger}, nil
}

func (t *redisTracker) Touch(ctx context.Context, postID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := t.client.ZIncrBy(ctx, t.key, 1, strconv.FormatInt(postID, 10)).Err(); err != nil {
		return fmt.Errorf("zincrby %s: %w", t.key, err)
	}
	return nil
}

func (t *redisTracker) Top(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	members, err := t.client.ZRevRange(ctx, t.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", t.key, err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			// Foreign member in the set, skip rather than fail the page.
			t.logger.Warn().Str("member", m).Msg("non-numeric member in trending set")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *redisTracker) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := t.client.Del(ctx, t.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", t.key, err)
	}
	return nil
}

func (t *redisTracker) Close() error {
	return t.client.Close()
}
