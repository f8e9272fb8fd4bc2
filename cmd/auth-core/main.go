package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-auth-core/internal/config"
	"github.com/pribylovaa/go-auth-core/internal/counters"
	"github.com/pribylovaa/go-auth-core/internal/mailer"
	"github.com/pribylovaa/go-auth-core/internal/ratelimit"
	"github.com/pribylovaa/go-auth-core/internal/service"
	"github.com/pribylovaa/go-auth-core/internal/storage"
	"github.com/pribylovaa/go-auth-core/internal/storage/postgres"
	transport "github.com/pribylovaa/go-auth-core/internal/transport/http"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	log.Info("postgres_connected")

	// Счётчики лимитера: Redis как общий бэкенд (если сконфигурирован),
	// in-process map как fallback.
	memStore := counters.NewMemoryStore()
	memStore.StartJanitor(rootCtx, 5*time.Minute)

	var primary counters.Store
	if cfg.Redis.RedisURL != "" {
		primary, err = counters.NewRedisStore(cfg.Redis.RedisURL, "")
		if err != nil {
			// Redis не критичен для старта: лимитер деградирует на память.
			log.Warn("redis_connect_failed", slog.String("err", err.Error()))
			primary = nil
		} else {
			log.Info("redis_connected")
		}
	}

	limiter := ratelimit.New(primary, memStore)

	// Сервис.
	srvc := service.New(str, cfg.Auth, mailer.LogMailer{})
	log.Info("service_initialized")

	var ready int32 // 0 — not ready; 1 — ready

	// Служебный сервер: liveness/readiness/metrics.
	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	opsMux.Handle("/metrics", promhttp.Handler())

	opsSrv := &http.Server{
		Addr:              cfg.Ops.Addr(),
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("ops_listen_start", "addr", cfg.Ops.Addr())
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops_serve_failed", slog.String("err", err.Error()))
		}
	}()

	// Публичный HTTP API.
	router := transport.NewRouter(srvc, transport.Options{
		Logger:   log,
		Timeout:  cfg.Timeouts.Service,
		Limiter:  limiter,
		Policies: cfg.RateLimits,
	})

	apiSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Фоновая очистка просроченных токенов.
	startTokenJanitor(rootCtx, str, log, 30*time.Minute)

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", slog.String("addr", cfg.HTTP.Addr()))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
	}
	_ = opsSrv.Shutdown(context.Background())

	// Явная очистка перед выходом.
	shutdownCancel()
	rootCancel()
	str.Close()

	log.Info("service_stopped")
	os.Exit(0)
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// startTokenJanitor запускает фоновую задачу, которая периодически удаляет
// просроченные refresh- и одноразовые токены. Tombstone-строки (revoked/used)
// с неистёкшим сроком не трогаем — их чистит отдельный retention-процесс.
func startTokenJanitor(ctx context.Context, str storage.Storage, log *slog.Logger, period time.Duration) {
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
				now := time.Now().UTC()

				cleanCtx, cancel := context.WithTimeout(ctx, time.Minute)
				if err := str.DeleteExpiredTokens(cleanCtx, now); err != nil {
					log.Warn("refresh_janitor_failed", slog.String("err", err.Error()))
				}
				if err := str.DeleteExpiredOneTimeTokens(cleanCtx, now); err != nil {
					log.Warn("onetime_janitor_failed", slog.String("err", err.Error()))
				}
				cancel()
			}
		}
	}()
}
