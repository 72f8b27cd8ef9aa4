package persistence

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore is a StateStore backed by Redis. Every key is stored as a
// plain string value under <prefix><key>.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
}

var _ StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore creates a RedisStateStore.
// prefix is optional but recommended (e.g. "flowcanvas:").
func NewRedisStateStore(client redis.UniversalClient, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = "flowcanvas:"
	}
	return &RedisStateStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStateStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStateStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisStateStore) Save(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *RedisStateStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *RedisStateStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	iter := s.client.Scan(ctx, 0, globEscape(s.prefix+prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// globEscape quotes the characters SCAN MATCH treats as pattern syntax.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
