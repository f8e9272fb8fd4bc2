package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — данные refresh-токена для управления сессиями.
//
// В БД хранится только хэш секрета (sha256 → base64url); сам секрет
// существует лишь на стороне клиента. Отзыв — tombstone (Revoked=true),
// строки на обычных потоках не удаляются.
type RefreshToken struct {
	RefreshTokenHash string
	UserID           uuid.UUID
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Revoked          bool
}
