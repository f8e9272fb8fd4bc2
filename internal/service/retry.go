package service

import (
	"context"
	"errors"
	"net"
)

// isTransientRead сообщает, что чтение упало из-за временного отказа
// инфраструктуры (таймаут бэкенда), а не из-за самих данных.
func isTransientRead(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// readWithRetry выполняет идемпотентное чтение и при временном отказе
// бэкенда повторяет его ровно один раз. Если истёк контекст самого запроса,
// повтор бессмыслен и не выполняется. Записи не повторяются никогда:
// у них нет гарантии идемпотентности.
func readWithRetry[T any](ctx context.Context, read func(context.Context) (T, error)) (T, error) {
	value, err := read(ctx)
	if err == nil || !isTransientRead(err) || ctx.Err() != nil {
		return value, err
	}

	return read(ctx)
}
