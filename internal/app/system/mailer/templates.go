// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// WelcomeEmailData fills the message sent after registration.
type WelcomeEmailData struct {
	SiteName     string
	Email        string
	DashboardURL string
}

// ResetInstructionsData fills the password recovery message.
type ResetInstructionsData struct {
	SiteName  string
	ResetLink string
	ExpiresIn string // e.g. "5 days"
}

// ResetNoticeData fills the notice sent after a password was changed.
type ResetNoticeData struct {
	SiteName   string
	Email      string
	RecoverURL string
}

// BuildWelcomeEmail creates the registration welcome message. To is set by
// the caller.
func BuildWelcomeEmail(data WelcomeEmailData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Welcome to %s!\n\n", data.SiteName)
	fmt.Fprintf(&text, "Your account %s is ready. Sign in at:\n", data.Email)
	text.WriteString(data.DashboardURL + "\n")

	return Email{
		Subject:  "Welcome to " + data.SiteName,
		TextBody: text.String(),
		HTMLBody: render(welcomeHTML, data),
	}
}

// BuildResetInstructionsEmail creates the message carrying the reset link.
func BuildResetInstructionsEmail(data ResetInstructionsData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Someone asked to reset the password for your %s account.\n\n", data.SiteName)
	text.WriteString("Use this link to choose a new password:\n")
	text.WriteString(data.ResetLink + "\n\n")
	fmt.Fprintf(&text, "The link expires in %s.\n\n", data.ExpiresIn)
	text.WriteString("If you did not request this, you can ignore this email. Your password will not change.\n")

	return Email{
		Subject:  "Password reset instructions",
		TextBody: text.String(),
		HTMLBody: render(resetInstructionsHTML, data),
	}
}

// BuildResetNoticeEmail creates the confirmation sent after a reset.
func BuildResetNoticeEmail(data ResetNoticeData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "The password for your %s account (%s) has been reset.\n\n", data.SiteName, data.Email)
	text.WriteString("If you did not do this, reset it again right away:\n")
	text.WriteString(data.RecoverURL + "\n")

	return Email{
		Subject:  "Your password has been reset",
		TextBody: text.String(),
		HTMLBody: render(resetNoticeHTML, data),
	}
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #da1a32;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px; font-size: 16px; color: #374151; line-height: 1.5;">
              {{template "content" .}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>{{end}}`

const buttonHTML = `{{define "button"}}<table role="presentation" width="100%" cellspacing="0" cellpadding="0">
  <tr>
    <td align="center" style="padding: 16px 0;">
      <a href="{{.URL}}" style="display: inline-block; padding: 14px 32px; background-color: #da1a32; color: #ffffff; text-decoration: none; border-radius: 6px;">{{.Label}}</a>
    </td>
  </tr>
</table>{{end}}`

var (
	welcomeHTML = mustEmailTemplate("welcome", `{{define "content"}}
<p>Your account <strong>{{.Email}}</strong> is ready.</p>
{{template "button" (button .DashboardURL "Go to your dashboard")}}
{{end}}`)

	resetInstructionsHTML = mustEmailTemplate("reset_instructions", `{{define "content"}}
<p>Someone asked to reset the password for your account.</p>
{{template "button" (button .ResetLink "Choose a new password")}}
<p style="font-size: 13px; color: #9ca3af;">This link expires in {{.ExpiresIn}}. If you did not ask for this, ignore this email.</p>
{{end}}`)

	resetNoticeHTML = mustEmailTemplate("reset_notice", `{{define "content"}}
<p>The password for <strong>{{.Email}}</strong> has been reset.</p>
<p>If this was not you, <a href="{{.RecoverURL}}">reset it again</a> right away.</p>
{{end}}`)
)

type buttonData struct {
	URL   string
	Label string
}

func mustEmailTemplate(name, content string) *template.Template {
	funcs := template.FuncMap{
		"button": func(url, label string) buttonData { return buttonData{URL: url, Label: label} },
	}
	t := template.Must(template.New(name).Funcs(funcs).Parse(layoutHTML))
	template.Must(t.Parse(buttonHTML))
	template.Must(t.Parse(content))
	return t.Lookup("layout")
}
