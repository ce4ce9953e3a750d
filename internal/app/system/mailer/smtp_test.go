package mailer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	m, err := buildMessage("RefStack <no-reply@refstack.org>", Email{
		To:       "user@example.com",
		Subject:  "Welcome to RefStack",
		TextBody: "plain body",
		HTMLBody: "<p>html body</p>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Subject: Welcome to RefStack")
	assert.Contains(t, out, "no-reply@refstack.org")
	assert.Contains(t, out, "user@example.com")
	assert.Contains(t, out, "text/html")
}

func TestBuildMessage_BadAddress(t *testing.T) {
	_, err := buildMessage("not an address", Email{To: "user@example.com"})
	assert.Error(t, err)

	_, err = buildMessage("no-reply@refstack.org", Email{To: "also not an address"})
	assert.Error(t, err)
}

func TestSMTPTransport_Options(t *testing.T) {
	plain := NewSMTP(SMTPConfig{Host: "localhost", Port: 1025})
	assert.Len(t, plain.clientOptions(), 2)

	ssl := NewSMTP(SMTPConfig{Host: "smtp.refstack.org", Port: 465, UseSSL: true, Username: "postmaster@refstack.org", Password: "x"})
	assert.Len(t, ssl.clientOptions(), 5)
	assert.Equal(t, "smtp", ssl.Name())
}
