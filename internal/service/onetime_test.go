package service

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-auth-core/internal/models"
	"github.com/pribylovaa/go-auth-core/internal/storage"
)

func TestHashOneTimeToken_KeyedByServerSecret(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	other := *svc
	otherCfg := testCfg()
	otherCfg.OneTimeSecret = "another-onetime-secret"
	other.cfg = otherCfg

	// Один и тот же токен под разными ключами даёт разные хэши:
	// хэш из БД бесполезен без серверного ключа.
	require.Equal(t, svc.hashOneTimeToken("tok"), svc.hashOneTimeToken("tok"))
	require.NotEqual(t, svc.hashOneTimeToken("tok"), other.hashOneTimeToken("tok"))
}

func TestOneTimeTTL_PerPurpose(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	require.Equal(t, svc.cfg.VerificationTTL, svc.oneTimeTTL(models.PurposeVerification))
	require.Equal(t, svc.cfg.ResetTTL, svc.oneTimeTTL(models.PurposePasswordReset))
}

func TestConfirmEmail_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	token := "verify-token"

	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposeVerification,
		svc.hashOneTimeToken(token), gomock.Any()).Return(nil)
	st.EXPECT().MarkEmailVerified(gomock.Any(), userID).Return(nil)

	require.NoError(t, svc.ConfirmEmail(context.Background(), userID, token))
}

func TestConfirmEmail_SecondRedemption_Rejected(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	token := "verify-token"
	hash := svc.hashOneTimeToken(token)

	// Первое погашение проходит, повтор того же токена получает отказ,
	// неотличимый от "токена не было".
	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposeVerification, hash, gomock.Any()).
		Return(nil)
	st.EXPECT().MarkEmailVerified(gomock.Any(), userID).Return(nil)
	require.NoError(t, svc.ConfirmEmail(context.Background(), userID, token))

	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposeVerification, hash, gomock.Any()).
		Return(storage.ErrNotFound)
	err := svc.ConfirmEmail(context.Background(), userID, token)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOneTimeInvalid)
}

func TestConfirmEmail_Expired(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	token := "verify-token"

	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposeVerification,
		svc.hashOneTimeToken(token), gomock.Any()).Return(storage.ErrExpired)

	err := svc.ConfirmEmail(context.Background(), userID, token)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOneTimeExpired)
}

func TestConfirmEmail_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	st.EXPECT().ConsumeOneTimeToken(gomock.Any(), userID, models.PurposeVerification,
		gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	err := svc.ConfirmEmail(context.Background(), userID, "tok")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrOneTimeInvalid)
}

func TestCheckOneTimeToken_DryRun(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	token := "verify-token"
	hash := svc.hashOneTimeToken(token)

	st.EXPECT().PeekOneTimeToken(gomock.Any(), userID, models.PurposeVerification, hash, gomock.Any()).
		Return(nil)
	ok, err := svc.CheckOneTimeToken(context.Background(), userID, models.PurposeVerification, token)
	require.NoError(t, err)
	require.True(t, ok)

	// Невалидный и просроченный сводятся к valid=false без ошибки.
	st.EXPECT().PeekOneTimeToken(gomock.Any(), userID, models.PurposeVerification, hash, gomock.Any()).
		Return(storage.ErrNotFound)
	ok, err = svc.CheckOneTimeToken(context.Background(), userID, models.PurposeVerification, token)
	require.NoError(t, err)
	require.False(t, ok)

	st.EXPECT().PeekOneTimeToken(gomock.Any(), userID, models.PurposeVerification, hash, gomock.Any()).
		Return(storage.ErrExpired)
	ok, err = svc.CheckOneTimeToken(context.Background(), userID, models.PurposeVerification, token)
	require.NoError(t, err)
	require.False(t, ok)

	// Инфраструктурная ошибка хранилища — наружу как ошибка.
	st.EXPECT().PeekOneTimeToken(gomock.Any(), userID, models.PurposeVerification, hash, gomock.Any()).
		Return(errors.New("db down"))
	_, err = svc.CheckOneTimeToken(context.Background(), userID, models.PurposeVerification, token)
	require.Error(t, err)
}
