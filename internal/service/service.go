// service содержит бизнес-логику ядра учётных записей и сессий:
// регистрацию/аутентификацию пользователей, выпуск/ротацию/отзыв токенов,
// одноразовые токены подтверждения и сброса и работу с хранилищем через
// интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Криптографические отказы и отказы полномочий (revoked/not-found/expired)
//     различаются только внутри — для логов; транспорт сводит их к одному
//     обезличенному отказу (анти-enumeration).
//   - Отказ хранилища при проверке полномочий — это fail-closed: корректность
//     важнее доступности, запрос отклоняется.
//   - Временный отказ бэкенда (таймаут) на идемпотентных чтениях повторяется
//     ровно один раз; записи не повторяются.
package service

import (
	"errors"

	"github.com/pribylovaa/go-auth-core/internal/config"
	"github.com/pribylovaa/go-auth-core/internal/mailer"
	"github.com/pribylovaa/go-auth-core/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Транспорт: HTTP 401 с единым телом для обоих случаев.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи
	// или отсутствует в хранилище. Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен отозван (logout/rotation/compromise) и недействителен
	// независимо от срока. Транспорт: HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят другим пользователем. Транспорт: HTTP 400.
	ErrEmailTaken = errors.New("email already taken")

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный refresh-токен
	// (редкий случай коллизий при сохранении хэша в БД после нескольких ретраев).
	// Транспорт: HTTP 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrInvalidEmail — e-mail имеет некорректный формат. Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности.
	// Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrOneTimeInvalid — одноразовый токен не найден либо уже использован.
	// Случаи намеренно неразличимы наружу. Транспорт: HTTP 400, общее сообщение.
	ErrOneTimeInvalid = errors.New("one-time token invalid or used")

	// ErrOneTimeExpired — одноразовый токен просрочен. Транспорт: HTTP 400,
	// то же сообщение, что и для ErrOneTimeInvalid.
	ErrOneTimeExpired = errors.New("one-time token expired")
)

// Service описывает бизнес-логику ядра учётных записей.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	mail    mailer.Mailer
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig, mail mailer.Mailer) *Service {
	if mail == nil {
		mail = mailer.LogMailer{}
	}

	return &Service{
		storage: storage,
		cfg:     cfg,
		mail:    mail,
	}
}
