// httperr стандартизирует ответы об ошибках HTTP-слоя.
// На вход он принимает доменную ошибку сервиса, а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Ключевое свойство — анти-enumeration: все отказы по учётным данным и
// токенам ("нет такого пользователя", "неверный пароль", "токен отозван",
// "токен просрочен") схлопываются в один и тот же статус и байт-в-байт
// одинаковое тело ещё до пересечения границы транспорта.
package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-auth-core/internal/service"
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil — это программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг;
//   - отказы аутентификации (креды/токены) -> 401 с единым телом;
//   - нарушения валидации и одноразовые токены -> 400;
//   - таймаут/отмена на границе хранилища -> 503 (инфраструктурный сбой,
//     а не "invalid token");
//   - прочее -> 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, response("internal", "internal error")
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		// Единое тело для всех отказов аутентификации.
		return http.StatusUnauthorized, response("unauthenticated", "invalid credentials or token")

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, response("email_taken", "email already taken")

	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, response("invalid_argument", "invalid argument")

	case errors.Is(err, service.ErrOneTimeInvalid),
		errors.Is(err, service.ErrOneTimeExpired):
		// "Неверный", "использованный" и "просроченный" наружу неразличимы.
		return http.StatusBadRequest, response("token_invalid", "token is invalid or already used")

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, response("unavailable", "service unavailable")
	}

	return http.StatusInternalServerError, response("internal", "internal error")
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)
	write(w, r, status, resp)
}

// WriteInvalidArgument — локальная ошибка разбора запроса -> 400.
func WriteInvalidArgument(w http.ResponseWriter, r *http.Request) {
	write(w, r, http.StatusBadRequest, response("invalid_argument", "invalid argument"))
}

// WriteRateLimited — отказ лимитера -> 429. Заголовки квоты и Retry-After
// выставляет вызывающий мидлвар.
func WriteRateLimited(w http.ResponseWriter, r *http.Request) {
	write(w, r, http.StatusTooManyRequests, response("rate_limited", "too many requests"))
}

func response(code, message string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: message}}
}

func write(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
