package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when a Redis command fails.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrEntryCorrupt is returned when a stored entry cannot be decoded.
var ErrEntryCorrupt = errors.New("blacklist entry corrupt")

// DefaultPrefix namespaces blacklist keys.
const DefaultPrefix = "gotoken:bl"

const (
	minTTL       = time.Millisecond
	scanPageSize = 1000
)

// Store is a Redis-backed goToken.BlacklistStore. Entries expire through
// Redis key TTLs.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store writing keys under prefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: rdb, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

// Put writes entry with SET NX so concurrent invalidations of the same token
// keep the first entry.
//
//	Performance: 1 Redis SET.
func (s *Store) Put(ctx context.Context, key string, entry goToken.BlacklistEntry, ttl time.Duration) (bool, error) {
	args := redis.SetArgs{Mode: "NX"}
	if ttl > 0 {
		if ttl < minTTL {
			ttl = minTTL
		}
		args.TTL = ttl
	}
	err := s.redis.SetArgs(ctx, s.key(key), Encode(entry), args).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return true, nil
}

// Get reads the entry stored under key.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, key string) (goToken.BlacklistEntry, bool, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goToken.BlacklistEntry{}, false, nil
		}
		return goToken.BlacklistEntry{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	entry, err := Decode(data)
	if err != nil {
		return goToken.BlacklistEntry{}, false, fmt.Errorf("%w: %v", ErrEntryCorrupt, err)
	}
	return entry, true, nil
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Flush deletes every key under the store prefix, one SCAN page at a time.
func (s *Store) Flush(ctx context.Context) error {
	return s.scan(ctx, func(keys []string) error {
		_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			return nil
		})
		return err
	})
}

// Count returns the number of stored entries. It walks the keyspace and is
// meant for diagnostics, not hot paths.
func (s *Store) Count(ctx context.Context) (int, error) {
	total := 0
	err := s.scan(ctx, func(keys []string) error {
		total += len(keys)
		return nil
	})
	return total, err
}

// Ping measures a Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) scan(ctx context.Context, fn func(keys []string) error) error {
	pattern := s.prefix + ":*"
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
