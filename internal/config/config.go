// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env        string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig      `yaml:"http"`
	Ops        OpsConfig       `yaml:"ops"`
	Auth       AuthConfig      `yaml:"auth"`
	DB         DBConfig        `yaml:"db"`
	Redis      RedisConfig     `yaml:"redis"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	Timeouts   TimeoutConfig   `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки публичного HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50080"`
}

// OpsConfig — сетевые настройки служебного сервера (/livez, /healthz, /metrics).
type OpsConfig struct {
	Host string `yaml:"host" env:"OPS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"OPS_PORT" env-default:"50081"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (o OpsConfig) Addr() string {
	return net.JoinHostPort(o.Host, o.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	Issuer          string        `yaml:"issuer"   env:"ISSUER" env-default:"auth-core"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"site"`

	// OneTimeSecret — серверный ключ HMAC для одноразовых токенов:
	// хэш в БД бесполезен без него даже при утечке хранилища.
	OneTimeSecret   string        `yaml:"onetime_secret" env:"ONETIME_SECRET" env-required:"true"`
	VerificationTTL time.Duration `yaml:"verification_ttl" env:"VERIFICATION_TTL" env-default:"24h"`
	ResetTTL        time.Duration `yaml:"reset_ttl" env:"RESET_TTL" env-default:"1h"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — настройки Redis для счётчиков лимитера.
// Пустой URL допустим: лимитер работает только на in-process хранилище.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL" env-default:""`
}

// RatePolicy — именованная политика класса маршрута.
type RatePolicy struct {
	Window  time.Duration `yaml:"window" env:"WINDOW"`
	Ceiling int           `yaml:"ceiling" env:"CEILING"`
}

// RateLimitConfig — потолки по классам маршрутов.
// Каждый класс параметризуется в точке вызова, а не глобально.
type RateLimitConfig struct {
	Auth    RatePolicy `yaml:"auth" env-prefix:"RL_AUTH_"`
	Payment RatePolicy `yaml:"payment" env-prefix:"RL_PAYMENT_"`
	General RatePolicy `yaml:"general" env-prefix:"RL_GENERAL_"`
}

// applyDefaults проставляет потолки по умолчанию для незаполненных классов.
func (r *RateLimitConfig) applyDefaults() {
	def := func(p *RatePolicy, window time.Duration, ceiling int) {
		if p.Window <= 0 {
			p.Window = window
		}
		if p.Ceiling <= 0 {
			p.Ceiling = ceiling
		}
	}

	def(&r.Auth, time.Minute, 5)
	def(&r.Payment, time.Minute, 10)
	def(&r.General, time.Minute, 100)
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		cfg.RateLimits.applyDefaults()

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	cfg.RateLimits.applyDefaults()

	return &cfg, nil
}
