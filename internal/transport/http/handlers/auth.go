package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-core/internal/models"
	apierrors "github.com/pribylovaa/go-auth-core/internal/transport/http/httperr"
	"github.com/pribylovaa/go-auth-core/internal/transport/http/middleware"
)

// Register — POST /auth/register: 201 c парой токенов и пользователем.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	pair, user, err := h.svc.RegisterUser(r.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Tokens: tokensResponse(pair),
		User:   userResponse(user),
	})
}

// Login — POST /auth/login: 200 либо 401 с единым телом для любого
// несовпадения учётных данных.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	pair, user, err := h.svc.LoginUser(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Tokens: tokensResponse(pair),
		User:   userResponse(user),
	})
}

// Refresh — POST /auth/refresh: ротация пары по refresh-токену.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in RefreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	pair, _, err := h.svc.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{Tokens: tokensResponse(pair)})
}

// Logout — POST /auth/logout: всегда 200 для клиента.
// Тело может отсутствовать; Bearer access-токен (если есть и валиден)
// включает полный выход со всех устройств.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in LogoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeStrict(r, &in); err != nil {
			apierrors.WriteInvalidArgument(w, r)
			return
		}
	}

	access := middleware.BearerFrom(r.Context())

	if err := h.svc.Logout(r.Context(), in.RefreshToken, access); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// VerifyEmailCheck — GET /auth/verify?user_id=...&token=...: dry-run без погашения.
func (h *Handlers) VerifyEmailCheck(w http.ResponseWriter, r *http.Request) {
	uid, token, ok := oneTimeQuery(r)
	if !ok {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	valid, err := h.svc.CheckOneTimeToken(r.Context(), uid, models.PurposeVerification, token)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidResponse{Valid: valid})
}

// VerifyEmail — POST /auth/verify: гасит токен и подтверждает email.
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in VerifyRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	uid, err := uuid.Parse(in.UserID)
	if err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	if err := h.svc.ConfirmEmail(r.Context(), uid, in.Token); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// ResetRequest — POST /auth/reset/request: всегда 202, известен email или нет.
func (h *Handlers) ResetRequest(w http.ResponseWriter, r *http.Request) {
	var in ResetRequestRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), in.Email); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, struct{}{})
}

// ResetCheck — GET /auth/reset?user_id=...&token=...: dry-run без погашения.
func (h *Handlers) ResetCheck(w http.ResponseWriter, r *http.Request) {
	uid, token, ok := oneTimeQuery(r)
	if !ok {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	valid, err := h.svc.CheckOneTimeToken(r.Context(), uid, models.PurposePasswordReset, token)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidResponse{Valid: valid})
}

// ResetPassword — POST /auth/reset: гасит токен и ставит новый пароль.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	uid, err := uuid.Parse(in.UserID)
	if err != nil {
		apierrors.WriteInvalidArgument(w, r)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), uid, in.Token, in.NewPassword); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// oneTimeQuery — разбор пары (user_id, token) из query-параметров.
func oneTimeQuery(r *http.Request) (uuid.UUID, string, bool) {
	q := r.URL.Query()

	token := q.Get("token")
	if token == "" {
		return uuid.Nil, "", false
	}

	uid, err := uuid.Parse(q.Get("user_id"))
	if err != nil {
		return uuid.Nil, "", false
	}

	return uid, token, true
}
