// Package redisstore keeps job idempotency keys in Redis so that every API
// instance sees the same keys.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyTTL is how long an idempotency key maps to its job.
const DefaultKeyTTL = 24 * time.Hour

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Store{rdb: rdb, ttl: DefaultKeyTTL}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func jobKey(userID uint64, key string) string {
	return fmt.Sprintf("idem:job:%d:%s", userID, key)
}

// Reserve implements jobs.Idempotency with SET NX.
func (s *Store) Reserve(ctx context.Context, userID uint64, key, jobID string) (string, bool, error) {
	k := jobKey(userID, key)
	ok, err := s.rdb.SetNX(ctx, k, jobID, s.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return jobID, true, nil
	}

	existing, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = s.rdb.SetNX(ctx, k, jobID, s.ttl).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return jobID, true, nil
		}
		existing, err = s.rdb.Get(ctx, k).Result()
	}
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

func (s *Store) Release(ctx context.Context, userID uint64, key string) error {
	return s.rdb.Del(ctx, jobKey(userID, key)).Err()
}
