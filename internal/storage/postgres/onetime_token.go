package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-auth-core/internal/models"
	"github.com/pribylovaa/go-auth-core/internal/storage"
)

// SaveOneTimeToken в одной транзакции инвалидирует прежние неиспользованные
// токены с тем же (user_id, purpose) и сохраняет новый. Так поддерживается
// инвариант "не более одного живого токена на назначение".
func (s *Storage) SaveOneTimeToken(ctx context.Context, token *models.OneTimeToken) error {
	const op = "storage.postgres.SaveOneTimeToken"

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const invalidate = `
		UPDATE onetime_tokens
		SET used = TRUE, used_at = $3
		WHERE user_id = $1 AND purpose = $2 AND used = FALSE
	`

	if _, err := tx.Exec(ctx, invalidate, token.UserID, token.Purpose, token.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	const insert = `
		INSERT INTO onetime_tokens(id, user_id, purpose, token_hash, created_at, expires_at, used, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.Exec(ctx, insert,
		token.ID,
		token.UserID,
		token.Purpose,
		token.TokenHash,
		token.CreatedAt,
		token.ExpiresAt,
		token.Used,
		token.UsedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConsumeOneTimeToken атомарно гасит токен одним условным UPDATE:
// used=FALSE и срок не истёк. Из двух конкурирующих погашений победит
// ровно одно, второе получит ErrNotFound/ErrExpired.
//
// Возвращает:
//
//	nil         — токен жив и погашен сейчас;
//	ErrExpired  — токен найден неиспользованным, но просрочен;
//	ErrNotFound — токена нет либо он уже использован (неразличимо).
func (s *Storage) ConsumeOneTimeToken(ctx context.Context, userID uuid.UUID, purpose models.OneTimePurpose, hash string, now time.Time) error {
	const op = "storage.postgres.ConsumeOneTimeToken"

	const upd = `
		UPDATE onetime_tokens
		SET used = TRUE, used_at = $4
		WHERE user_id = $1 AND purpose = $2 AND token_hash = $3
		  AND used = FALSE AND expires_at > $4
		RETURNING id
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, upd, userID, purpose, hash, now).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Диагностический SELECT: отличить просроченный токен от
	// отсутствующего/использованного. Ответ наружу остаётся общим.
	const sel = `
		SELECT expires_at
		FROM onetime_tokens
		WHERE user_id = $1 AND purpose = $2 AND token_hash = $3 AND used = FALSE
	`

	var expiresAt time.Time
	err = s.db.QueryRow(ctx, sel, userID, purpose, hash).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !expiresAt.After(now) {
		return fmt.Errorf("%s: %w", op, storage.ErrExpired)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// PeekOneTimeToken проверяет наличие живого неиспользованного токена без погашения.
func (s *Storage) PeekOneTimeToken(ctx context.Context, userID uuid.UUID, purpose models.OneTimePurpose, hash string, now time.Time) error {
	const op = "storage.postgres.PeekOneTimeToken"

	const sel = `
		SELECT expires_at
		FROM onetime_tokens
		WHERE user_id = $1 AND purpose = $2 AND token_hash = $3 AND used = FALSE
	`

	var expiresAt time.Time
	err := s.db.QueryRow(ctx, sel, userID, purpose, hash).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !expiresAt.After(now) {
		return fmt.Errorf("%s: %w", op, storage.ErrExpired)
	}

	return nil
}

// DeleteExpiredOneTimeTokens удаляет просроченные одноразовые токены.
func (s *Storage) DeleteExpiredOneTimeTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredOneTimeTokens"

	query := `
		DELETE FROM onetime_tokens
		WHERE expires_at <= $1
	`

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
