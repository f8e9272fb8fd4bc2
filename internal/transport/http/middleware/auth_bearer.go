package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxAuthTokenKey struct{}

// AuthBearer извлекает Bearer-токен из Authorization и кладёт "сырой" токен
// в контекст. Валидация токена — задача хендлеров, а не мидлвара.
func AuthBearer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if auth != "" {
				const prefix = "Bearer "
				if strings.HasPrefix(auth, prefix) && len(auth) > len(prefix) {
					token := strings.TrimSpace(auth[len(prefix):])

					if token != "" {
						ctx := context.WithValue(r.Context(), ctxAuthTokenKey{}, token)
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerFrom возвращает сырой Bearer-токен из контекста ("", если нет).
func BearerFrom(ctx context.Context) string {
	if v := ctx.Value(ctxAuthTokenKey{}); v != nil {
		if token, ok := v.(string); ok {
			return token
		}
	}

	return ""
}
