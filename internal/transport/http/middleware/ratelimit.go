package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/pribylovaa/go-auth-core/internal/ratelimit"
	apierrors "github.com/pribylovaa/go-auth-core/internal/transport/http/httperr"
)

// RateLimit применяет политику лимитера к маршруту и выставляет
// метаданные квоты в заголовки ответа:
//
//	X-RateLimit-Limit / X-RateLimit-Remaining / X-RateLimit-Reset
//
// При превышении потолка — 429 с Retry-After.
func RateLimit(l *ratelimit.Limiter, p ratelimit.Policy) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Check(r.Context(), clientIP(r), p)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(res.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))

				apierrors.WriteRateLimited(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP — лучший доступный сетевой адрес клиента:
// первый hop X-Forwarded-For, затем X-Real-Ip, затем RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			xff = xff[:idx]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
