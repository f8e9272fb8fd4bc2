// mailer — граница исходящих уведомлений (письма подтверждения и сброса).
// Доставка для ядра — fire-and-forget: сбой отправки логируется,
// но никогда не валит операцию, которая выпустила токен.
package mailer

import (
	"context"
	"log/slog"

	"github.com/pribylovaa/go-auth-core/internal/pkg/log"
	"github.com/pribylovaa/go-auth-core/internal/pkg/redact"
)

// Mailer — контракт доставки писем с одноразовыми токенами.
// Реальная отправка (SMTP/провайдер) живёт у внешнего коллаборатора.
type Mailer interface {
	// SendVerificationEmail отправляет письмо для подтверждения email.
	SendVerificationEmail(ctx context.Context, to, name, rawToken string) error
	// SendPasswordResetEmail отправляет письмо для сброса пароля.
	SendPasswordResetEmail(ctx context.Context, to, name, rawToken string) error
}

// LogMailer — реализация-заглушка: пишет факт отправки в лог.
// Используется в local-окружении и тестах; сам токен в лог не попадает.
type LogMailer struct{}

var _ Mailer = (*LogMailer)(nil)

func (LogMailer) SendVerificationEmail(ctx context.Context, to, name, _ string) error {
	log.From(ctx).Info("verification_email_sent",
		slog.String("to", redact.Email(to)),
		slog.String("name", name),
		slog.String("token", redact.Token()),
	)

	return nil
}

func (LogMailer) SendPasswordResetEmail(ctx context.Context, to, name, _ string) error {
	log.From(ctx).Info("reset_email_sent",
		slog.String("to", redact.Email(to)),
		slog.String("name", name),
		slog.String("token", redact.Token()),
	)

	return nil
}
