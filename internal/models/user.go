package models

import (
	"time"

	"github.com/google/uuid"
)

// User - модель пользователя в системе.
type User struct {
	ID            uuid.UUID
	Name          string
	Email         string
	Role          string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
