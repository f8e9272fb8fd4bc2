package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-core/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/хэш токена).
	ErrAlreadyExists = errors.New("already exists")
	// ErrExpired — сущность просрочена (refresh/one-time токен).
	ErrExpired = errors.New("expired")
	// ErrRevoked — сущность отозвана (refresh-токен).
	ErrRevoked = errors.New("revoked")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdatePasswordHash заменяет хэш пароля пользователя.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	// MarkEmailVerified помечает email пользователя подтверждённым.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-token в БД.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshTokenIfActive атомарно отзывает refresh-токен, если он
	// ещё не был отозван. Возвращает:
	//
	//	(true, nil)  — токен был активен и отозван сейчас;
	//	(false, nil) — токен существует, но уже был отозван;
	//	(false, ErrNotFound) — токен не найден.
	RevokeRefreshTokenIfActive(ctx context.Context, hash string) (bool, error)
	// RevokeAllRefreshTokens отзывает все активные refresh-токены пользователя.
	// Возвращает количество отозванных строк.
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteExpiredTokens удаляет все просроченные токены.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// OneTimeTokenStorage выполняет операции над одноразовыми токенами.
type OneTimeTokenStorage interface {
	// SaveOneTimeToken в одной транзакции инвалидирует прежние
	// неиспользованные токены (user_id, purpose) и сохраняет новый.
	SaveOneTimeToken(ctx context.Context, token *models.OneTimeToken) error
	// ConsumeOneTimeToken атомарно гасит токен: used false→true одним
	// условным UPDATE. Возвращает:
	//
	//	nil          — токен найден, жив и погашен сейчас;
	//	ErrExpired   — токен найден, но просрочен;
	//	ErrNotFound  — токена нет либо он уже использован
	//	               (случаи намеренно неразличимы).
	ConsumeOneTimeToken(ctx context.Context, userID uuid.UUID, purpose models.OneTimePurpose, hash string, now time.Time) error
	// PeekOneTimeToken проверяет без погашения, существует ли живой
	// неиспользованный токен (user_id, purpose, hash).
	PeekOneTimeToken(ctx context.Context, userID uuid.UUID, purpose models.OneTimePurpose, hash string, now time.Time) error
	// DeleteExpiredOneTimeTokens удаляет просроченные одноразовые токены.
	DeleteExpiredOneTimeTokens(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	OneTimeTokenStorage
	Close()
}
