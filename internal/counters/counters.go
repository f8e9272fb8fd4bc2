// counters предоставляет абстракцию key→counter с атомарным инкрементом
// и TTL-семантикой. Две взаимозаменяемые реализации за одним контрактом:
// Redis (общий для всех инстансов, переживает рестарты) и in-process map
// (нулевая задержка, на один процесс; используется как fallback).
package counters

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound — ключ отсутствует либо его TTL уже истёк.
var ErrNotFound = errors.New("counter not found")

// Store — контракт счётчиков с TTL.
//
// Increment обязан быть атомарным на уровне бэкенда: два конкурирующих
// запроса по одному ключу не должны терять инкременты.
type Store interface {
	// Increment атомарно увеличивает счётчик ключа на 1 и возвращает
	// новое значение. Несуществующий ключ стартует с 0.
	Increment(ctx context.Context, key string) (int64, error)
	// Expire устанавливает TTL ключа.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL возвращает остаток жизни ключа (ErrNotFound, если ключа нет).
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Get возвращает текущее значение счётчика (ErrNotFound, если ключа нет).
	Get(ctx context.Context, key string) (int64, error)
	// Set записывает значение счётчика с TTL.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	// Delete удаляет ключ. Отсутствие ключа не является ошибкой.
	Delete(ctx context.Context, key string) error
}
