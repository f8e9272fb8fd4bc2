package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-core/internal/models"
	"github.com/pribylovaa/go-auth-core/internal/pkg/log"
	"github.com/pribylovaa/go-auth-core/internal/storage"
)

// hashOneTimeToken — HMAC-SHA256 с серверным ключом → base64url.
// Привязка к ключу делает хэш из БД бесполезным сам по себе:
// предъявить его вместо токена нельзя.
func (s *Service) hashOneTimeToken(plain string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.OneTimeSecret))
	mac.Write([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// oneTimeTTL — срок жизни одноразового токена по назначению.
func (s *Service) oneTimeTTL(purpose models.OneTimePurpose) time.Duration {
	if purpose == models.PurposePasswordReset {
		return s.cfg.ResetTTL
	}

	return s.cfg.VerificationTTL
}

// issueOneTimeToken выпускает новый одноразовый токен; прежние
// неиспользованные токены того же назначения инвалидируются в хранилище
// той же транзакцией.
func (s *Service) issueOneTimeToken(ctx context.Context, userID uuid.UUID, purpose models.OneTimePurpose) (string, error) {
	const op = "service.onetime.issueOneTimeToken"

	lg := log.From(ctx)

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		lg.Error("onetime_rand_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	plain := base64.RawURLEncoding.EncodeToString(b)

	now := time.Now().UTC()
	token := &models.OneTimeToken{
		ID:        uuid.New(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: s.hashOneTimeToken(plain),
		CreatedAt: now,
		ExpiresAt: now.Add(s.oneTimeTTL(purpose)),
		Used:      false,
	}

	if err := s.storage.SaveOneTimeToken(ctx, token); err != nil {
		lg.Error("save_onetime_token_failed",
			slog.String("op", op),
			slog.String("purpose", string(purpose)),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return plain, nil
}

// redeemOneTimeToken гасит токен строго однократно: условный UPDATE в
// хранилище, никаких отдельных чтений перед записью. "Неверный" и
// "уже использованный" токены сливаются в один отказ.
func (s *Service) redeemOneTimeToken(ctx context.Context, userID uuid.UUID, purpose models.OneTimePurpose, plain string) error {
	const op = "service.onetime.redeemOneTimeToken"

	lg := log.From(ctx)

	err := s.storage.ConsumeOneTimeToken(ctx, userID, purpose, s.hashOneTimeToken(plain), time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("onetime_redeem_rejected",
				slog.String("op", op),
				slog.String("purpose", string(purpose)),
			)
			return fmt.Errorf("%s: %w", op, ErrOneTimeInvalid)
		case errors.Is(err, storage.ErrExpired):
			lg.Warn("onetime_redeem_expired",
				slog.String("op", op),
				slog.String("purpose", string(purpose)),
			)
			return fmt.Errorf("%s: %w", op, ErrOneTimeExpired)
		}

		lg.Error("onetime_redeem_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CheckOneTimeToken — проверка без погашения (dry-run для форм фронта).
func (s *Service) CheckOneTimeToken(ctx context.Context, userID uuid.UUID, purpose models.OneTimePurpose, plain string) (bool, error) {
	const op = "service.onetime.CheckOneTimeToken"

	_, err := readWithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.storage.PeekOneTimeToken(ctx, userID, purpose, s.hashOneTimeToken(plain), time.Now().UTC())
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}
