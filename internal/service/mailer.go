package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
	"github.com/spado/songcontest/internal/config"
	"gopkg.in/gomail.v2"
)

// EmailMessage is a fully rendered email with both body variants.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers rendered messages. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// NewMailer picks the transport configured by MAIL_DRIVER.
func NewMailer(cfg *config.Config) (Mailer, error) {
	switch cfg.MailDriver {
	case config.MailDriverResend:
		if cfg.ResendAPIKey == "" {
			return nil, errors.New("email service not configured (missing RESEND_API_KEY)")
		}
		return &resendMailer{client: resend.NewClient(cfg.ResendAPIKey), from: cfg.EmailFrom}, nil
	case config.MailDriverSMTP:
		if cfg.SMTPHost == "" {
			return nil, errors.New("email service not configured (missing SMTP_HOST)")
		}
		return &smtpMailer{
			dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
			from:   cfg.EmailFrom,
		}, nil
	case config.MailDriverLog, "":
		return &logMailer{}, nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
}

type resendMailer struct {
	client *resend.Client
	from   string
}

func (m *resendMailer) Send(ctx context.Context, msg EmailMessage) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	_, err := m.client.Emails.SendWithContext(ctx, params)
	return err
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

func (m *smtpMailer) Send(ctx context.Context, msg EmailMessage) error {
	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.Text)
	message.AddAlternative("text/html", msg.HTML)

	// gomail has no context support; run the dial in the background and
	// give up waiting when the request goes away.
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(message)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logMailer prints messages instead of sending them (development).
type logMailer struct{}

func (m *logMailer) Send(ctx context.Context, msg EmailMessage) error {
	slog.Info("email sent (dev mode)", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}
