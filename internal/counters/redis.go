package counters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore создаёт хранилище счётчиков поверх Redis из URL
// (например, redis://:pass@host:6379/0). Если prefix пустой —
// используется "rl:".
func NewRedisStore(redisURL, prefix string) (Store, error) {
	const op = "counters.NewRedisStore"

	if prefix == "" {
		prefix = "rl:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &redisStore{rdb: rdb, prefix: prefix}, nil
}

// NewRedisStoreFromClient оборачивает уже созданный клиент (для тестов).
func NewRedisStoreFromClient(rdb *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "rl:"
	}

	return &redisStore{rdb: rdb, prefix: prefix}
}

func (s *redisStore) key(k string) string { return s.prefix + k }

// Increment атомарно увеличивает счётчик (INCR).
func (s *redisStore) Increment(ctx context.Context, key string) (int64, error) {
	const op = "counters.redis.Increment"

	count, err := s.rdb.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// Expire устанавливает TTL ключа.
func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	const op = "counters.redis.Expire"

	if err := s.rdb.Expire(ctx, s.key(key), ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TTL возвращает остаток жизни ключа.
func (s *redisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	const op = "counters.redis.TTL"

	ttl, err := s.rdb.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	// -2 — ключа нет; -1 — ключ без TTL.
	if ttl < 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return ttl, nil
}

// Get возвращает текущее значение счётчика.
func (s *redisStore) Get(ctx context.Context, key string) (int64, error) {
	const op = "counters.redis.Get"

	value, err := s.rdb.Get(ctx, s.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return value, nil
}

// Set записывает значение счётчика с TTL.
func (s *redisStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	const op = "counters.redis.Set"

	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Delete удаляет ключ.
func (s *redisStore) Delete(ctx context.Context, key string) error {
	const op = "counters.redis.Delete"

	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
