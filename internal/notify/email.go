package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// Email is an outgoing message for one recipient.
type Email struct {
	To      string
	Message Message
}

// Sender delivers emails.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// NewSender returns an SMTP sender, or a logging no-op when SMTP is not configured.
func NewSender(cfg config.NotificationConfig, logger *zap.Logger) Sender {
	if !cfg.EmailEnabled() {
		return &LogSender{logger: logger}
	}
	return NewSMTPSender(cfg)
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPSender creates a sender for the configured relay.
func NewSMTPSender(cfg config.NotificationConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.EmailFrom,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

// Send delivers the email with a plain text part and an HTML alternative.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Message.Subject)
	m.SetBody("text/plain", email.Message.Text)
	if email.Message.HTML != "" {
		m.AddAlternative("text/html", email.Message.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogSender only logs emails. Used when no SMTP relay is configured.
type LogSender struct {
	logger *zap.Logger
}

// Send logs the email.
func (s *LogSender) Send(_ context.Context, email Email) error {
	if s.logger != nil {
		s.logger.Info("email delivery disabled; dropping message",
			zap.String("to", email.To),
			zap.String("subject", email.Message.Subject),
		)
	}
	return nil
}
