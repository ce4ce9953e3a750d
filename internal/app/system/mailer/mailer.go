// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Email is one outbound message. HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Transport delivers a message. SMTP and Mailgun are the production
// transports; LogTransport is used when neither is configured.
type Transport interface {
	Name() string
	Send(ctx context.Context, from string, msg Email) error
}

// Sender is what handlers send mail through: a Mailer directly, or a
// workers.MailQueue in front of one.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

var errNoRecipient = errors.New("mailer: message has no recipient")

// Mailer stamps the configured sender on messages and hands them to a
// Transport.
type Mailer struct {
	from      string
	transport Transport
	log       *zap.Logger
}

// New returns a Mailer sending as from (see SenderAddress) over t.
func New(t Transport, from string, logger *zap.Logger) *Mailer {
	return &Mailer{from: from, transport: t, log: logger}
}

// From returns the sender address.
func (m *Mailer) From() string { return m.from }

// TransportName identifies the active transport, for startup logging.
func (m *Mailer) TransportName() string { return m.transport.Name() }

// Send delivers msg. The caller owns the deadline on ctx.
func (m *Mailer) Send(ctx context.Context, msg Email) error {
	if strings.TrimSpace(msg.To) == "" {
		return errNoRecipient
	}
	if err := m.transport.Send(ctx, m.from, msg); err != nil {
		return fmt.Errorf("send via %s: %w", m.transport.Name(), err)
	}
	m.log.Debug("mail sent",
		zap.String("transport", m.transport.Name()),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// SenderAddress turns the security_email_sender setting into a From
// address. A bare domain such as "refstack.org" becomes
// "no-reply@refstack.org"; full addresses, with or without a display name,
// are kept.
func SenderAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	if _, err := mail.ParseAddress(sender); err == nil {
		return sender
	}
	if !strings.Contains(sender, "@") {
		return "no-reply@" + sender
	}
	return sender
}

// LogTransport writes messages to the log instead of delivering them.
// Bodies carry live reset links, so they are only logged when ShowBody is
// set, and then at Debug level.
type LogTransport struct {
	Log      *zap.Logger
	ShowBody bool
}

func (t LogTransport) Name() string { return "log" }

func (t LogTransport) Send(_ context.Context, from string, msg Email) error {
	t.Log.Info("mail delivery disabled; message logged",
		zap.String("from", from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	if t.ShowBody {
		t.Log.Debug("logged message body",
			zap.String("to", msg.To),
			zap.String("body", msg.TextBody))
	}
	return nil
}
