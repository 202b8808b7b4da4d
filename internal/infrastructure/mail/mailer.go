package mail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	gomail "github.com/go-mail/mail/v2"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/pkg/config"
)

// ErrNoRecipients is returned for a notification with an empty To list
var ErrNoRecipients = errors.New("notification has no recipients")

// SMTPMailer delivers notifications over SMTP with mandatory STARTTLS
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

var _ domain.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer from SMTP settings
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.StartTLSPolicy = gomail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return &SMTPMailer{dialer: d, from: cfg.From}
}

// Send dials the SMTP server and sends one message
func (m *SMTPMailer) Send(ctx context.Context, n *domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := BuildMessage(m.from, n)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// BuildMessage renders a notification into a MIME message. Employee confirmations carry
// the employee id in SendGrid unique_args so open events can be matched back.
func BuildMessage(from string, n *domain.Notification) (*gomail.Message, error) {
	if len(n.To) == 0 {
		return nil, ErrNoRecipients
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", n.To...)
	msg.SetHeader("Subject", n.Subject)

	if n.EmployeeID != "" {
		args, err := json.Marshal(map[string]any{
			"unique_args": map[string]string{"employee_id": n.EmployeeID},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode smtp api header: %w", err)
		}
		msg.SetHeader("X-SMTPAPI", string(args))
	}

	msg.SetBody("text/html", n.HTML)
	return msg, nil
}

// LogMailer logs notifications instead of sending them; used when SMTP is not configured
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, n *domain.Notification) error {
	if len(n.To) == 0 {
		return ErrNoRecipients
	}
	m.logger.Info("email not sent, smtp disabled",
		slog.String("notification_id", n.ID),
		slog.String("kind", string(n.Kind)),
		slog.Any("to", n.To),
		slog.String("subject", n.Subject),
	)
	return nil
}
