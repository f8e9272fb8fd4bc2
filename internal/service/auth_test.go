package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-auth-core/internal/config"
	"github.com/pribylovaa/go-auth-core/internal/models"
	"github.com/pribylovaa/go-auth-core/internal/storage"
	"github.com/pribylovaa/go-auth-core/mocks"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "auth-core",
		Audience:        []string{"site"},
		OneTimeSecret:   "unit-onetime-secret",
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	svc := New(st, testCfg(), nil)
	return svc, st, ctrl
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}

func refreshHash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestRegisterUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	email := "User@Example.com"
	norm := "user@example.com"
	pw := "Abcdef1!"

	// Сначала UserByEmail → ErrNotFound, потом SaveUser, потом пара токенов
	// и одноразовый токен подтверждения email.
	st.EXPECT().UserByEmail(gomock.Any(), norm).Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().SaveOneTimeToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, user, err := svc.RegisterUser(ctx, "  Alice  ", email, pw)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.Equal(t, norm, user.Email)
	require.Equal(t, "Alice", user.Name)
	require.Equal(t, defaultRole, user.Role)
	require.False(t, user.EmailVerified)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)

	require.WithinDuration(t, time.Now().Add(svc.cfg.AccessTokenTTL), tp.AccessExpiresAt, 2*time.Second)
}

func TestRegisterUser_InvalidEmail(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "A", "not-an-email", "Abcdef1!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRegisterUser_WeakOrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "A", "u@e.com", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, _, err = svc.RegisterUser(context.Background(), "A", "u@e.com", "short")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWeakPassword)

	// Длина достаточная, но нет спецсимвола.
	_, _, err = svc.RegisterUser(context.Background(), "A", "u@e.com", "Abcdefg1")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUser_EmailAlreadyExists_OnLookup(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Если UserByEmail вернул пользователя (err == nil) - считается занятым email.
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: uuid.New(), Email: "user@example.com"}, nil)

	_, _, err := svc.RegisterUser(context.Background(), "A", "user@example.com", "Abcdef1!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_SaveUserAlreadyExists_MapsToEmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists)

	_, _, err := svc.RegisterUser(context.Background(), "A", "user@example.com", "Abcdef1!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_StorageLookupError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, errors.New("db down"))

	_, _, err := svc.RegisterUser(context.Background(), "A", "user@example.com", "Abcdef1!")
	require.Error(t, err)
}

func TestRegisterUser_VerificationIssueFailure_DoesNotFailRegistration(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	// Доставка токена подтверждения fire-and-forget: сбой не валит регистрацию.
	st.EXPECT().SaveOneTimeToken(gomock.Any(), gomock.Any()).Return(errors.New("insert failed"))

	tp, user, err := svc.RegisterUser(context.Background(), "A", "user@example.com", "Abcdef1!")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotEmpty(t, tp.RefreshToken)
}

func TestLoginUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	email := "user@example.com"
	pw := "Abcdef1!"
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Role:         "user",
		PasswordHash: mustHashPW(t, pw),
	}

	st.EXPECT().UserByEmail(gomock.Any(), email).Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, got, err := svc.LoginUser(ctx, email, pw)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
}

func TestLoginUser_InvalidEmail_OrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.LoginUser(context.Background(), "bad", "Abcdef1!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.LoginUser(context.Background(), "user@example.com", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_UserNotFound_OrWrongPassword_SameError(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)

	_, _, errNotFound := svc.LoginUser(context.Background(), "user@example.com", "Abcdef1!")
	require.Error(t, errNotFound)
	require.ErrorIs(t, errNotFound, ErrInvalidCredentials)

	// wrong password
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: mustHashPW(t, "Abcdef1!")}
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(user, nil)

	_, _, errWrongPW := svc.LoginUser(context.Background(), "user@example.com", "WRONGpw1!")
	require.Error(t, errWrongPW)
	require.ErrorIs(t, errWrongPW, ErrInvalidCredentials)

	// Оба случая сводятся к одному и тому же sentinel — наружу неразличимы.
	require.ErrorIs(t, errNotFound, ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPW, ErrInvalidCredentials)
}

func TestLoginUser_StorageErrorOnLookup_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, errors.New("db problem"))

	_, _, err := svc.LoginUser(context.Background(), "user@example.com", "Abcdef1!")
	require.Error(t, err)
}

func TestRefreshToken_OK_WithRotation(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	user := &models.User{ID: userID, Email: "user@example.com", Role: "user", PasswordHash: "hash"}

	plain := "some-refresh-plain"
	hash := refreshHash(plain)

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash,
		UserID:           userID,
		CreatedAt:        time.Now().Add(-time.Hour),
		ExpiresAt:        time.Now().Add(time.Hour),
		Revoked:          false,
	}, nil)

	st.EXPECT().UserByID(gomock.Any(), userID).Return(user, nil)

	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hash).Return(true, nil)

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, uid, err := svc.RefreshToken(ctx, plain)
	require.NoError(t, err)
	require.Equal(t, userID, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
	require.NotEqual(t, plain, tp.RefreshToken)
}

func TestRefreshToken_NotFound_Revoked_Expired(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	plain := "r"
	hash := refreshHash(plain)

	// Not found -> ErrInvalidToken
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(nil, storage.ErrNotFound)
	_, _, err := svc.RefreshToken(context.Background(), plain)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Revoked
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash, UserID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour), Revoked: true,
	}, nil)
	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// Expired
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash, UserID: uuid.New(), CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute), Revoked: false,
	}, nil)
	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshToken_RotationLoser_GetsRejected(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	plain := "r"
	hash := refreshHash(plain)
	userID := uuid.New()

	active := &models.RefreshToken{
		RefreshTokenHash: hash, UserID: userID, CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour), Revoked: false,
	}
	user := &models.User{ID: userID, Email: "u@e.com", Role: "user"}

	// Токен прошёл валидацию, но условный отзыв сообщил, что кто-то успел
	// раньше: уже отозван -> ErrTokenRevoked, новая пара не выпускается.
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(active, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(user, nil)
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hash).Return(false, nil)

	_, _, err := svc.RefreshToken(ctx, plain)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// Строка исчезла между валидацией и отзывом -> ErrInvalidToken.
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(active, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(user, nil)
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hash).Return(false, storage.ErrNotFound)

	_, _, err = svc.RefreshToken(ctx, plain)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken_StorageErrors_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	plain := "r"
	hash := refreshHash(plain)

	// Ошибка на чтении токена.
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(nil, errors.New("db get fail"))
	_, _, err := svc.RefreshToken(context.Background(), plain)
	require.Error(t, err)

	// Токен валиден, но UserByID падает.
	userID := uuid.New()
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash, UserID: userID, CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour), Revoked: false,
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(nil, errors.New("db user fail"))
	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.Error(t, err)

	// Ошибка при отзыве старого refresh.
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash, UserID: userID, CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour), Revoked: false,
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(&models.User{ID: userID, Email: "u@e.com"}, nil)
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hash).Return(false, errors.New("db revoke fail"))
	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.Error(t, err)
}

func TestLogout_RefreshOnly_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	plain := "refresh-plain"
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), refreshHash(plain)).Return(true, nil)

	require.NoError(t, svc.Logout(context.Background(), plain, ""))
}

func TestLogout_Idempotent_UnknownOrRevokedRefresh(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	plain := "refresh-plain"

	// Токена нет в хранилище — не ошибка.
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), refreshHash(plain)).
		Return(false, storage.ErrNotFound)
	require.NoError(t, svc.Logout(context.Background(), plain, ""))

	// Токен уже отозван — тоже не ошибка.
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), refreshHash(plain)).
		Return(false, nil)
	require.NoError(t, svc.Logout(context.Background(), plain, ""))
}

func TestLogout_WithValidAccessToken_RevokesAllSessions(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	user := &models.User{ID: userID, Email: "user@example.com", Role: "user"}

	access, err := svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)

	plain := "refresh-plain"
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), refreshHash(plain)).Return(true, nil)
	st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), userID).Return(int64(3), nil)

	require.NoError(t, svc.Logout(ctx, plain, access))
}

func TestLogout_InvalidAccessToken_Ignored(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	plain := "refresh-plain"
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), refreshHash(plain)).Return(true, nil)

	// Мусорный access-токен не мешает обычному logout и не трогает остальные сессии.
	require.NoError(t, svc.Logout(context.Background(), plain, "not-a-jwt"))
}

func TestLogout_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	plain := "refresh-plain"
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), refreshHash(plain)).
		Return(false, errors.New("db down"))

	require.Error(t, svc.Logout(context.Background(), plain, ""))
}

func TestRequestPasswordReset_UnknownEmail_SilentSuccess(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").
		Return(nil, storage.ErrNotFound)

	// Наружу исход неотличим от успешного.
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))

	// Некорректный формат email — тоже молчаливый успех.
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "not-an-email"))
}

func TestRequestPasswordReset_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: userID, Email: "user@example.com", Name: "Alice"}, nil)
	st.EXPECT().SaveOneTimeToken(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "User@Example.com"))
}

func TestResetPassword_OK_RevokesAllSessions(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	token := "reset-token-plain"

	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposePasswordReset,
		svc.hashOneTimeToken(token), gomock.Any()).Return(nil)
	st.EXPECT().UpdatePasswordHash(gomock.Any(), userID, gomock.Any()).Return(nil)
	st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), userID).Return(int64(2), nil)

	require.NoError(t, svc.ResetPassword(context.Background(), userID, token, "Newpass1!"))
}

func TestResetPassword_WeakPassword_NoTokenBurned(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Пароль проверяется до погашения токена: невалидный пароль не тратит токен.
	err := svc.ResetPassword(context.Background(), uuid.New(), "tok", "weak")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestResetPassword_InvalidOrExpiredToken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	token := "reset-token-plain"
	hash := svc.hashOneTimeToken(token)

	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposePasswordReset, hash, gomock.Any()).
		Return(storage.ErrNotFound)
	err := svc.ResetPassword(context.Background(), userID, token, "Newpass1!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOneTimeInvalid)

	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposePasswordReset, hash, gomock.Any()).
		Return(storage.ErrExpired)
	err = svc.ResetPassword(context.Background(), userID, token, "Newpass1!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOneTimeExpired)
}
