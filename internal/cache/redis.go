package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/comps-intel/internal/model"
)

// KeyPrefix namespaces analysis entries in a shared Redis database.
const KeyPrefix = "comps:cache:"

// RedisStore is a Remote backed by Redis. Entries are JSON encoded and expire
// with the cache TTL.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, eris.New("cache: redis addr required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: redis ping %s", addr)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Get loads key. A missing key is reported as (nil, false, nil).
func (s *RedisStore) Get(ctx context.Context, key string) (*model.AnalysisResult, bool, error) {
	raw, err := s.rdb.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	var res model.AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s", key)
	}
	return &res, true, nil
}

// Set stores res under key for ttl.
func (s *RedisStore) Set(ctx context.Context, key string, res *model.AnalysisResult, ttl time.Duration) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	if err := s.rdb.Set(ctx, KeyPrefix+key, raw, ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, KeyPrefix+key).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis del %s", key)
	}
	return nil
}

// Clear removes every entry under KeyPrefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "cache: redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return eris.Wrap(err, "cache: redis clear")
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
