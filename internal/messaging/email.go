// Package messaging holds the outbound email and SMS channels.
package messaging

import (
	"context"
	"fmt"

	"civictrack/backend/internal/apperr"
	"civictrack/backend/internal/config"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// Dialer is the part of *mail.Dialer the mailer uses.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPMailer sends multipart (text + HTML) emails over SMTP.
type SMTPMailer struct {
	dialer Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPMailer returns nil when no SMTP host is configured, which disables
// the email channel.
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	if cfg.Host == "" {
		return nil
	}
	return NewSMTPMailerWithDialer(mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, logger)
}

// NewSMTPMailerWithDialer builds a mailer over any Dialer.
func NewSMTPMailerWithDialer(d Dialer, from string, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{dialer: d, from: from, logger: logger}
}

// SendEmail delivers one message. Errors are returned, never panicked.
func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, text, html string) error {
	if to == "" {
		return apperr.Validation("recipient address is required", "to")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return apperr.Upstream(fmt.Sprintf("failed to send email to %s", to), err)
	}

	m.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
