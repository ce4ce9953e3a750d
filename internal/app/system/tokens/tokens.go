// Package tokens issues the signed, time-limited tokens emailed for
// password recovery.
//
// Tokens are stateless securecookie values. Each one carries the user ID and
// a fingerprint of the password hash current at issue time, so a token stops
// working the moment the password changes (including by its own use).
package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/gorilla/securecookie"
)

// PurposeReset names the password-recovery token family.
const PurposeReset = "reset-password"

// ErrInvalid covers tampered, expired and malformed tokens alike.
var ErrInvalid = errors.New("invalid or expired token")

// Claims is the decoded content of a token.
type Claims struct {
	UserID      string `json:"uid"`
	Fingerprint string `json:"fp"`
}

// Matches reports whether the token was issued for passwordHash.
func (c Claims) Matches(passwordHash string) bool {
	return hmac.Equal([]byte(c.Fingerprint), []byte(Fingerprint(passwordHash)))
}

// Signer encodes and decodes tokens for one purpose.
type Signer struct {
	purpose string
	maxAge  time.Duration
	codec   *securecookie.SecureCookie
}

// NewSigner derives purpose-specific signing and encryption keys from secret.
// Tokens older than maxAge are rejected.
func NewSigner(secret, purpose string, maxAge time.Duration) *Signer {
	codec := securecookie.New(deriveKey(secret, purpose+":sign", 64), deriveKey(secret, purpose+":encrypt", 32))
	codec.MaxAge(int(maxAge / time.Second))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Signer{purpose: purpose, maxAge: maxAge, codec: codec}
}

// MaxAge returns how long issued tokens stay valid.
func (s *Signer) MaxAge() time.Duration { return s.maxAge }

// Issue returns a URL-safe token for userID bound to passwordHash.
func (s *Signer) Issue(userID, passwordHash string) (string, error) {
	return s.codec.Encode(s.purpose, Claims{UserID: userID, Fingerprint: Fingerprint(passwordHash)})
}

// Parse verifies token and returns its claims.
func (s *Signer) Parse(token string) (Claims, error) {
	var c Claims
	if token == "" {
		return c, ErrInvalid
	}
	if err := s.codec.Decode(s.purpose, token, &c); err != nil {
		return Claims{}, ErrInvalid
	}
	if c.UserID == "" {
		return Claims{}, ErrInvalid
	}
	return c, nil
}

// Fingerprint is a short digest of a password hash.
func Fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func deriveKey(secret, label string, n int) []byte {
	var out []byte
	for i := byte(0); len(out) < n; i++ {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte{i})
		mac.Write([]byte(label))
		out = append(out, mac.Sum(nil)...)
	}
	return out[:n]
}
