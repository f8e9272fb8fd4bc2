// Входные/выходные модели REST-слоя.
package handlers

import "github.com/pribylovaa/go-auth-core/internal/models"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type VerifyRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type ResetRequestRequest struct {
	Email string `json:"email"`
}

type ResetRequest struct {
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type TokensResponse struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	AccessExpiresAt int64  `json:"access_expires_at"` // Unix UTC
}

type UserResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

type AuthResponse struct {
	Tokens TokensResponse `json:"tokens"`
	User   UserResponse   `json:"user"`
}

type RefreshResponse struct {
	Tokens TokensResponse `json:"tokens"`
}

type ValidResponse struct {
	Valid bool `json:"valid"`
}

func tokensResponse(pair *models.TokenPair) TokensResponse {
	return TokensResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt.Unix(),
	}
}

func userResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
	}
}
