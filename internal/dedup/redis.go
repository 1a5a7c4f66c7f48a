package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const defaultKeyPrefix = "lead-triage:hash:"

// RedisStore keeps lead hashes in Redis string keys.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps rdb. A zero ttl keeps hashes indefinitely.
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: defaultKeyPrefix, ttl: ttl}
}

// NewRedisStoreFromURL parses a redis:// URL and connects.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: parse redis url")
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "dedup: ping redis")
	}
	return NewRedisStore(rdb, ttl), nil
}

// GetLeadHash returns the stored hash for leadID.
func (s *RedisStore) GetLeadHash(ctx context.Context, leadID string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.prefix+leadID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "dedup: get hash for %s", leadID)
	}
	return v, true, nil
}

// SaveLeadHash stores hash for leadID.
func (s *RedisStore) SaveLeadHash(ctx context.Context, leadID, hash string) error {
	if err := s.rdb.Set(ctx, s.prefix+leadID, hash, s.ttl).Err(); err != nil {
		return eris.Wrapf(err, "dedup: save hash for %s", leadID)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
