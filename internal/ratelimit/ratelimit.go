// ratelimit реализует fixed-window ограничитель частоты запросов для
// чувствительных маршрутов. Ключ — композиция класса маршрута, идентификатора
// клиента и начала окна; окна выровнены по настенным часам, поэтому все
// клиенты одного окна видят синхронный сброс.
//
// Отказ бэкенда — это отказ инфраструктуры, а не нарушение политики:
// в этом случае лимитер деградирует на in-process хранилище (fail-open),
// но никогда не блокирует весь трафик.
//
// Известное свойство fixed-window: на границе окна возможен всплеск до 2×
// от потолка. Это принятый компромисс, не дефект.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pribylovaa/go-auth-core/internal/counters"
	"github.com/pribylovaa/go-auth-core/internal/pkg/log"
)

// Policy — типизированная политика класса маршрута.
type Policy struct {
	// Name — стабильное имя класса (часть ключа счётчика).
	Name string
	// Window — размер окна.
	Window time.Duration
	// Ceiling — максимум запросов в окне.
	Ceiling int
}

// Result — исход проверки лимита.
type Result struct {
	// Allowed — запрос в пределах потолка.
	Allowed bool
	// Limit — потолок класса маршрута.
	Limit int
	// Remaining — остаток квоты в текущем окне.
	Remaining int
	// Reset — момент окончания текущего окна (UTC).
	Reset time.Time
	// RetryAfter — через сколько можно повторить (для отказа).
	RetryAfter time.Duration
	// Degraded — проверка прошла через fallback-хранилище.
	Degraded bool
}

// Limiter применяет политику fixed-window поверх counters.Store.
//
// Primary-хранилище (обычно Redis) выбирается один раз при сборке;
// при его недоступности каждый вызов прозрачно уходит в fallback.
type Limiter struct {
	primary  counters.Store // может быть nil — тогда сразу fallback
	fallback counters.Store
	now      func() time.Time
}

// New создаёт Limiter. fallback обязателен; primary может быть nil,
// если общий бэкенд не сконфигурирован.
func New(primary, fallback counters.Store) *Limiter {
	return &Limiter{
		primary:  primary,
		fallback: fallback,
		now:      time.Now,
	}
}

// Check атомарно инкрементирует счётчик окна и сравнивает с потолком.
// Ошибок не возвращает: инфраструктурные сбои гасятся fail-open внутри.
func (l *Limiter) Check(ctx context.Context, clientID string, p Policy) Result {
	const op = "ratelimit.Check"

	now := l.now().UTC()
	windowStart := now.Truncate(p.Window)
	windowEnd := windowStart.Add(p.Window)
	key := compositeKey(p.Name, clientID, windowStart)

	ttl := windowEnd.Sub(now)
	if ttl <= 0 {
		ttl = p.Window
	}

	var (
		count    int64
		err      error
		degraded bool
	)

	if l.primary != nil {
		count, err = l.increment(ctx, l.primary, key, ttl)
		if err != nil {
			log.From(ctx).Warn("ratelimit_backend_degraded",
				slog.String("op", op),
				slog.String("class", p.Name),
				slog.String("err", err.Error()),
			)

			degraded = true
			count, err = l.increment(ctx, l.fallback, key, ttl)
		}
	} else {
		// Общий бэкенд не сконфигурирован: in-process хранилище здесь
		// штатный режим, а не деградация.
		count, err = l.increment(ctx, l.fallback, key, ttl)
	}

	if err != nil {
		// Последний доступный бэкенд тоже отказал — пропускаем запрос (fail-open).
		log.From(ctx).Error("ratelimit_fallback_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		return Result{
			Allowed:   true,
			Limit:     p.Ceiling,
			Remaining: 0,
			Reset:     windowEnd,
			Degraded:  true,
		}
	}

	remaining := p.Ceiling - int(count)
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= int64(p.Ceiling),
		Limit:     p.Ceiling,
		Remaining: remaining,
		Reset:     windowEnd,
		Degraded:  degraded,
	}

	if !res.Allowed {
		res.RetryAfter = windowEnd.Sub(now)
	}

	return res
}

// increment — INCR + условный EXPIRE на первом попадании в окно.
func (l *Limiter) increment(ctx context.Context, store counters.Store, key string, ttl time.Duration) (int64, error) {
	const op = "ratelimit.increment"

	if store == nil {
		return 0, fmt.Errorf("%s: store is nil", op)
	}

	count, err := store.Increment(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	// Fixed-window: TTL ставится только первому попаданию в окне.
	if count == 1 {
		if err := store.Expire(ctx, key, ttl); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	return count, nil
}

// compositeKey — класс маршрута + клиент + начало окна.
// Начало окна в ключе даёт синхронный сброс без явного удаления.
func compositeKey(class, clientID string, windowStart time.Time) string {
	return class + ":" + clientID + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}
