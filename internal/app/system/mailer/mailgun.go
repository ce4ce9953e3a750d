// internal/app/system/mailer/mailgun.go
package mailer

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunTransport delivers through the Mailgun HTTP API. It is chosen over
// SMTP whenever mailgun_key is set.
type MailgunTransport struct {
	mg *mailgun.MailgunImpl
}

// NewMailgun returns a transport for domain. apiBase may be empty for the
// default (US) region.
func NewMailgun(domain, apiKey, apiBase string) *MailgunTransport {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &MailgunTransport{mg: mg}
}

func (t *MailgunTransport) Name() string { return "mailgun" }

func (t *MailgunTransport) Send(ctx context.Context, from string, msg Email) error {
	m := t.mg.NewMessage(from, msg.Subject, msg.TextBody, msg.To)
	if msg.HTMLBody != "" {
		m.SetHtml(msg.HTMLBody)
	}
	_, _, err := t.mg.Send(ctx, m)
	return err
}
