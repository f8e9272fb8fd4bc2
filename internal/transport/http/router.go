package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-auth-core/internal/config"
	"github.com/pribylovaa/go-auth-core/internal/ratelimit"
	"github.com/pribylovaa/go-auth-core/internal/service"
	"github.com/pribylovaa/go-auth-core/internal/transport/http/handlers"
	"github.com/pribylovaa/go-auth-core/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.

	// Limiter может быть nil — тогда лимитирование отключено (тесты).
	Limiter  *ratelimit.Limiter
	Policies config.RateLimitConfig
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.AuthBearer(),         // вынимаем Bearer токен в контекст для хендлеров
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	// Зависимости хендлеров.
	h := handlers.New(svc)

	// Регистрация маршрутов.
	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, opts)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, opts)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
// Классы лимитера привязываются к маршрутам здесь, в точке вызова.
func registerRoutes(r chi.Router, h *handlers.Handlers, opts Options) {
	authLimit := routeLimit(opts, policyFromConfig("auth", opts.Policies.Auth))
	generalLimit := routeLimit(opts, policyFromConfig("general", opts.Policies.General))

	// Чувствительные маршруты: потолок класса auth.
	r.With(authLimit).Post("/auth/register", h.Register)
	r.With(authLimit).Post("/auth/login", h.Login)
	r.With(authLimit).Post("/auth/refresh", h.Refresh)
	r.With(authLimit).Post("/auth/reset/request", h.ResetRequest)
	r.With(authLimit).Post("/auth/reset", h.ResetPassword)
	r.With(authLimit).Post("/auth/verify", h.VerifyEmail)

	// Остальное: общий потолок.
	r.With(generalLimit).Post("/auth/logout", h.Logout)
	r.With(generalLimit).Get("/auth/verify", h.VerifyEmailCheck)
	r.With(generalLimit).Get("/auth/reset", h.ResetCheck)
}

func policyFromConfig(name string, p config.RatePolicy) ratelimit.Policy {
	return ratelimit.Policy{
		Name:    name,
		Window:  p.Window,
		Ceiling: p.Ceiling,
	}
}

func routeLimit(opts Options, p ratelimit.Policy) func(http.Handler) http.Handler {
	if opts.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return middleware.RateLimit(opts.Limiter, p)
}
