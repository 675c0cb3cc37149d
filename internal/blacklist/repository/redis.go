package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldbook/backend/internal/apperr"
	"fieldbook/backend/internal/blacklist/domain"
)

// RedisStore keeps one key per entry, expiring with the token, plus a sorted set of token ids
// scored by expiry (unix ms) so purges can find dead entries without scanning the keyspace.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store using keys under prefix (e.g. "fieldbook:blacklist").
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) entryKey(tokenID string) string { return s.prefix + ":token:" + tokenID }
func (s *RedisStore) indexKey() string               { return s.prefix + ":expiry" }

func (s *RedisStore) Put(ctx context.Context, e *domain.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode blacklist entry", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetArgs(ctx, s.entryKey(e.TokenID), payload, redis.SetArgs{Mode: "NX", ExpireAt: e.ExpiresAt})
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(e.ExpiresAt.UnixMilli()), Member: e.TokenID})
		return nil
	})
	// SET NX reports redis.Nil when the key already exists; the entry is kept as-is.
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("blacklist put", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, tokenID string) (*domain.Entry, error) {
	raw, err := s.rdb.Get(ctx, s.entryKey(tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("blacklist get", err)
	}
	var e domain.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "decode blacklist entry", err)
	}
	return &e, nil
}

func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, unavailable("blacklist purge", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
		members[i] = id
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return 0, unavailable("blacklist purge", err)
	}
	return int64(len(ids)), nil
}

func unavailable(op string, err error) error {
	return apperr.Wrap(apperr.KindUnavailable, op+": redis unavailable", err)
}
