// internal/app/system/inputval/inputval.go
package inputval

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/refstack/refstack/internal/app/system/normalize"
	"github.com/refstack/refstack/internal/app/system/passwords"
)

// MaxNameLength bounds the full name accepted at registration.
const MaxNameLength = 200

// IsValidEmail reports whether s is a bare address (no display name) with
// a well-formed local part and domain.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	return dotsOK(local) && dotsOK(domain)
}

func dotsOK(part string) bool {
	return !strings.HasPrefix(part, ".") &&
		!strings.HasSuffix(part, ".") &&
		!strings.Contains(part, "..")
}

// FieldErrors maps form field names to user-facing messages.
type FieldErrors map[string]string

// First returns one message, preferring the order fields were checked in.
func (fe FieldErrors) First(order ...string) string {
	for _, k := range order {
		if msg, ok := fe[k]; ok {
			return msg
		}
	}
	for _, msg := range fe {
		return msg
	}
	return ""
}

// PasswordChange checks a new password and its confirmation.
func PasswordChange(password, confirm string) FieldErrors {
	fe := FieldErrors{}
	if err := passwords.Validate(password); err != nil {
		fe["password"] = strings.ToUpper(err.Error()[:1]) + err.Error()[1:] + "."
	} else if password != confirm {
		fe["password_confirm"] = "Passwords do not match."
	}
	return fe
}

// Registration checks the sign-up form. Email and name are normalized
// before the checks.
func Registration(fullName, email, password, confirm string) FieldErrors {
	fe := PasswordChange(password, confirm)

	email = normalize.Email(email)
	switch {
	case email == "":
		fe["email"] = "Email is required."
	case !IsValidEmail(email):
		fe["email"] = "Please enter a valid email address."
	}

	if utf8.RuneCountInString(normalize.Name(fullName)) > MaxNameLength {
		fe["full_name"] = "Name is too long."
	}
	return fe
}
