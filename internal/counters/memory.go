package counters

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	value     int64
	expiresAt time.Time // нулевое значение — без TTL
}

// MemoryStore — in-process реализация Store на mutex-защищённой map.
//
// Каждая мутация по ключу выполняется единственным путём под мьютексом
// (не чтение+запись), поэтому конкурирующие инкременты одного клиента
// не теряются. Просроченные ключи вычищаются лениво при обращении;
// StartJanitor дополнительно ограничивает рост памяти.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore создаёт пустое in-process хранилище счётчиков.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// expired — проверка TTL; вызывать только под mu.
func (s *MemoryStore) expired(e *memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Increment атомарно увеличивает счётчик ключа на 1.
func (s *MemoryStore) Increment(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || s.expired(e, now) {
		e = &memoryEntry{}
		s.entries[key] = e
	}

	e.value++

	return e.value, nil
}

// Expire устанавливает TTL ключа.
func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	const op = "counters.memory.Expire"

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || s.expired(e, now) {
		delete(s.entries, key)
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	e.expiresAt = now.Add(ttl)

	return nil
}

// TTL возвращает остаток жизни ключа.
func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	const op = "counters.memory.TTL"

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || s.expired(e, now) {
		delete(s.entries, key)
		return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if e.expiresAt.IsZero() {
		return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return e.expiresAt.Sub(now), nil
}

// Get возвращает текущее значение счётчика.
func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	const op = "counters.memory.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || s.expired(e, now) {
		delete(s.entries, key)
		return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return e.value, nil
}

// Set записывает значение счётчика с TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e

	return nil
}

// Delete удаляет ключ.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)

	return nil
}

// StartJanitor запускает фоновую чистку просроченных ключей с заданным
// периодом. Останавливается по отмене контекста.
func (s *MemoryStore) StartJanitor(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, key)
		}
	}
}
