package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-auth-core/internal/models"
	"github.com/pribylovaa/go-auth-core/internal/pkg/log"
	"github.com/pribylovaa/go-auth-core/internal/pkg/redact"
	"github.com/pribylovaa/go-auth-core/internal/storage"
)

// defaultRole — роль, назначаемая новым пользователям.
const defaultRole = "user"

// RegisterUser регистрирует нового пользователя: проверяет уникальность,
// хэширует пароль, выпускает пару токенов и одноразовый токен подтверждения
// email. Доставка письма — fire-and-forget: её сбой не валит регистрацию.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.RegisterUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = readWithRetry(ctx, func(ctx context.Context) (*models.User, error) {
		return s.storage.UserByEmail(ctx, normEmail)
	})
	if err == nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Email:        normEmail,
		Role:         defaultRole,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueTokenPair(ctx, user, "")
	if err != nil {
		return nil, nil, err
	}

	s.sendVerification(ctx, user)

	return pair, user, nil
}

// LoginUser выполняет вход по email+пароль.
// Ответ для "нет такого пользователя" и "неверный пароль" идентичен —
// защита от перебора адресов.
func (s *Service) LoginUser(ctx context.Context, email, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.LoginUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := readWithRetry(ctx, func(ctx context.Context) (*models.User, error) {
		return s.storage.UserByEmail(ctx, normEmail)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokenPair(ctx, user, "")
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// RefreshToken обновляет пару токенов по refresh-токену с ротацией:
// старый токен отзывается атомарно в момент выпуска нового, поэтому
// повтор старого токена после ротации всегда получает отказ.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RefreshToken"

	token, err := s.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := readWithRetry(ctx, func(ctx context.Context) (*models.User, error) {
		return s.storage.UserByID(ctx, token.UserID)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Пользователь удалён после выпуска токена — токен больше
			// никого не удостоверяет.
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueTokenPair(ctx, user, hashRefreshToken(refreshToken))
	if err != nil {
		return nil, uuid.Nil, err
	}

	return pair, user.ID, nil
}

// Logout отзывает предъявленный refresh-токен; при валидном access-токене
// дополнительно отзывает все refresh-токены пользователя (полный выход со
// всех устройств). Идемпотентен: отсутствующий или уже отозванный токен —
// не ошибка.
func (s *Service) Logout(ctx context.Context, refreshToken, accessToken string) error {
	const op = "service.auth.Logout"

	lg := log.From(ctx)

	if refreshToken != "" {
		_, err := s.storage.RevokeRefreshTokenIfActive(ctx, hashRefreshToken(refreshToken))
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if accessToken == "" {
		return nil
	}

	uid, _, err := s.validateAccessToken(accessToken)
	if err != nil {
		// Невалидный access-токен не мешает обычному logout.
		lg.Warn("logout_access_token_rejected",
			slog.String("op", op),
		)
		return nil
	}

	revoked, err := s.storage.RevokeAllRefreshTokens(ctx, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("logout_all_sessions",
		slog.String("op", op),
		slog.String("user_id", uid.String()),
		slog.Int64("revoked", revoked),
	)

	return nil
}

// ValidateToken проверяет access-токен и возвращает данные пользователя.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (uuid.UUID, string, string, error) {
	const op = "service.auth.ValidateToken"

	uid, claims, err := s.validateAccessToken(accessToken)
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("%s: %w", op, err)
	}

	return uid, claims.Email, claims.Role, nil
}

// ConfirmEmail гасит токен подтверждения и помечает email подтверждённым.
func (s *Service) ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) error {
	const op = "service.auth.ConfirmEmail"

	if err := s.redeemOneTimeToken(ctx, userID, models.PurposeVerification, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.MarkEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("email_verified",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)

	return nil
}

// RequestPasswordReset выпускает токен сброса и отправляет письмо.
// Для неизвестного email возвращает nil без каких-либо действий —
// наружу исход неотличим от успешного (анти-enumeration).
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "service.auth.RequestPasswordReset"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil
	}

	user, err := readWithRetry(ctx, func(ctx context.Context) (*models.User, error) {
		return s.storage.UserByEmail(ctx, normEmail)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("reset_requested_unknown_email",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	plain, err := s.issueOneTimeToken(ctx, user.ID, models.PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.mail.SendPasswordResetEmail(ctx, user.Email, user.Name, plain); err != nil {
		lg.Error("reset_email_send_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return nil
}

// ResetPassword гасит токен сброса, ставит новый пароль и отзывает все
// refresh-токены пользователя: украденные сессии умирают вместе со старым
// паролем.
func (s *Service) ResetPassword(ctx context.Context, userID uuid.UUID, token, newPassword string) error {
	const op = "service.auth.ResetPassword"

	if err := validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.redeemOneTimeToken(ctx, userID, models.PurposePasswordReset, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdatePasswordHash(ctx, userID, hashedPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	revoked, err := s.storage.RevokeAllRefreshTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("password_reset_done",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
		slog.Int64("sessions_revoked", revoked),
	)

	return nil
}

// sendVerification выпускает токен подтверждения и отправляет письмо.
// Ошибки не возвращаются: регистрация уже состоялась.
func (s *Service) sendVerification(ctx context.Context, user *models.User) {
	const op = "service.auth.sendVerification"

	lg := log.From(ctx)

	plain, err := s.issueOneTimeToken(ctx, user.ID, models.PurposeVerification)
	if err != nil {
		lg.Error("verification_issue_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return
	}

	if err := s.mail.SendVerificationEmail(ctx, user.Email, user.Name, plain); err != nil {
		lg.Error("verification_email_send_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}

// issueTokenPair выпускает новую пару access+refresh токенов.
// Если oldRefreshHash != "", сперва атомарно отзывает старый refresh-токен:
// проигравший из двух конкурирующих ротаций получает отказ, а не вторую пару.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User, oldRefreshHash string) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if oldRefreshHash != "" {
		revoked, err := s.storage.RevokeRefreshTokenIfActive(ctx, oldRefreshHash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !revoked {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	plain, err := s.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    plain,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}
