package counters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestMemoryStore возвращает хранилище с управляемыми часами.
func newTestMemoryStore(start time.Time) (*MemoryStore, *time.Time) {
	s := NewMemoryStore()
	now := start
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStore_IncrementAndGet(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.Increment(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.Increment(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(2), got)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.TTL(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.Expire(context.Background(), "missing", time.Minute)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ExpireAndLazyEviction(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s, now := newTestMemoryStore(start)
	ctx := context.Background()

	_, err := s.Increment(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, s.Expire(ctx, "k", time.Minute))

	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, time.Minute, ttl)

	// После истечения TTL ключ ведёт себя как отсутствующий.
	*now = start.Add(time.Minute + time.Second)

	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	// Increment по просроченному ключу начинает счёт заново.
	n, err := s.Increment(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestMemoryStore_KeyWithoutTTL_HasNoTTL(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Increment(ctx, "k")
	require.NoError(t, err)

	_, err = s.TTL(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SetAndDelete(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", 42, time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(42), got)

	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentIncrements_NoLostUpdates(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	const (
		goroutines = 16
		perG       = 100
	)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				_, _ = s.Increment(ctx, "k")
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(goroutines*perG), got)
}

func TestMemoryStore_Sweep(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s, now := newTestMemoryStore(start)
	ctx := context.Background()

	_, _ = s.Increment(ctx, "short")
	require.NoError(t, s.Expire(ctx, "short", time.Second))
	_, _ = s.Increment(ctx, "long")
	require.NoError(t, s.Expire(ctx, "long", time.Hour))

	*now = start.Add(time.Minute)
	s.sweep()

	s.mu.Lock()
	_, shortAlive := s.entries["short"]
	_, longAlive := s.entries["long"]
	s.mu.Unlock()

	require.False(t, shortAlive)
	require.True(t, longAlive)
}
