package models

import (
	"time"

	"github.com/google/uuid"
)

// OneTimePurpose — назначение одноразового токена.
type OneTimePurpose string

const (
	// PurposeVerification — подтверждение email.
	PurposeVerification OneTimePurpose = "verification"
	// PurposePasswordReset — сброс пароля.
	PurposePasswordReset OneTimePurpose = "password_reset"
)

// OneTimeToken — одноразовый токен (подтверждение email / сброс пароля).
//
// Инварианты:
//   - в БД хранится только HMAC-хэш секрета, привязанный к серверному ключу;
//   - на (UserID, Purpose) существует не более одного неиспользованного токена:
//     выпуск нового инвалидирует предыдущие;
//   - погашение строго однократное: Used переходит false→true условным
//     UPDATE, а не парой чтение+запись.
type OneTimeToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Purpose   OneTimePurpose
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}
