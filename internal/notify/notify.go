// Package notify delivers out-of-band alerts to the bot owner. Delivery
// failures are surfaced to the caller but never block trading.
package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"herd/internal/config"
)

// Notifier sends a short message to the configured owner.
type Notifier interface {
	Send(subject, body string) error
}

// Nop swallows every message. Used in simulation and in tests.
type Nop struct{}

func (Nop) Send(string, string) error { return nil }

// Mailer delivers messages over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// NewMailer builds a Mailer from the email and owner sections. It returns an
// error when the configuration is too incomplete to ever deliver.
func NewMailer(email config.Email, owner config.Owner) (*Mailer, error) {
	if email.Host == "" || email.From == "" || owner.Email == "" {
		return nil, fmt.Errorf("notify: email host, from and owner address are all required")
	}
	return &Mailer{
		dialer: gomail.NewDialer(email.Host, email.Port, email.From, email.Password),
		from:   email.From,
		to:     owner.Email,
	}, nil
}

func (m *Mailer) Send(subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}
