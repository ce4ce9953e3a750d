// internal/app/system/mailer/smtp.go
package mailer

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig mirrors the mail_* settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool // implicit TLS, usually port 465
	UseTLS   bool // STARTTLS, usually port 587
}

// SMTPTransport delivers through an SMTP relay. A new connection is made
// per message; volume here is a handful of account emails.
type SMTPTransport struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, from string, msg Email) error {
	m, err := buildMessage(from, msg)
	if err != nil {
		return err
	}

	c, err := gomail.NewClient(t.cfg.Host, t.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, m)
}

func (t *SMTPTransport) clientOptions() []gomail.Option {
	opts := []gomail.Option{gomail.WithPort(t.cfg.Port)}

	switch {
	case t.cfg.UseSSL:
		opts = append(opts, gomail.WithSSL())
	case t.cfg.UseTLS:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}

	if t.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.cfg.Username),
			gomail.WithPassword(t.cfg.Password),
		)
	}
	return opts
}

func buildMessage(from string, msg Email) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("from address %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}
	return m, nil
}
