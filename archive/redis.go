package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resultTTL   = 24 * time.Hour
	recentKey   = "checkers:results:recent"
	recentLimit = 100
)

// RedisStore archives results in Redis: one JSON value per game with a TTL
// plus a capped recent-games list.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func resultKey(gameID string) string { return "checkers:result:" + gameID }

func (s *RedisStore) SaveResult(ctx context.Context, r *Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, resultKey(r.GameID), raw, resultTTL)
	pipe.LPush(ctx, recentKey, r.GameID)
	pipe.LTrim(ctx, recentKey, 0, recentLimit-1)
	pipe.Expire(ctx, recentKey, resultTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Recent(ctx context.Context, n int) ([]Result, error) {
	if n <= 0 || n > recentLimit {
		n = recentLimit
	}
	ids, err := s.rdb.LRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, resultKey(id)).Bytes()
		if err == redis.Nil {
			continue // expired individually
		}
		if err != nil {
			return nil, err
		}
		var r Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
