// Package passwords hashes and verifies account passwords.
//
// The configured scheme (security_password_hash) decides how new hashes are
// produced. Verification looks at the stored hash's prefix instead, so a
// scheme change never locks anyone out; NeedsRehash tells the login flow to
// upgrade the stored hash on the next successful sign-in.
//
// When a salt is configured (security_password_salt, defaulting to the
// secret key) the password is first run through HMAC-SHA512 keyed with the
// salt and base64 encoded. The crypt scheme then hashes that string.
package passwords

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/sha256_crypt"
	_ "github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

// Supported scheme names.
const (
	SHA512Crypt = "sha512_crypt"
	SHA256Crypt = "sha256_crypt"
	Bcrypt      = "bcrypt"
)

const (
	MinLength = 6
	MaxLength = 128

	// bcrypt ignores everything past 72 bytes and x/crypto refuses longer input.
	bcryptMaxBytes = 72
)

var (
	ErrUnknownScheme = errors.New("unknown password hash scheme")
	ErrTooShort      = fmt.Errorf("password must be at least %d characters", MinLength)
	ErrTooLong       = fmt.Errorf("password must be at most %d characters", MaxLength)
)

// Schemes lists the accepted values of security_password_hash.
func Schemes() []string {
	return []string{SHA512Crypt, SHA256Crypt, Bcrypt}
}

// Supported reports whether scheme is one of Schemes, ignoring case.
func Supported(scheme string) bool {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case SHA512Crypt, SHA256Crypt, Bcrypt:
		return true
	}
	return false
}

// Hasher produces and checks password hashes. It is safe for concurrent use.
type Hasher struct {
	scheme string
	salt   []byte
}

// New returns a Hasher for scheme. An empty salt disables the HMAC step.
func New(scheme, salt string) (*Hasher, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if !Supported(scheme) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return &Hasher{scheme: scheme, salt: []byte(salt)}, nil
}

// Scheme returns the scheme new hashes are created with.
func (h *Hasher) Scheme() string { return h.scheme }

// Hash returns a new hash of pw using the configured scheme.
func (h *Hasher) Hash(pw string) (string, error) {
	key := h.prepare(pw)

	switch h.scheme {
	case Bcrypt:
		b, err := bcrypt.GenerateFromPassword(truncate(key, bcryptMaxBytes), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(b), nil
	case SHA256Crypt:
		return crypt.SHA256.New().Generate(key, nil)
	default:
		return crypt.SHA512.New().Generate(key, nil)
	}
}

// Verify reports whether pw matches hash. Unknown or empty hashes never match.
func (h *Hasher) Verify(hash, pw string) bool {
	key := h.prepare(pw)

	switch SchemeOf(hash) {
	case Bcrypt:
		return bcrypt.CompareHashAndPassword([]byte(hash), truncate(key, bcryptMaxBytes)) == nil
	case SHA256Crypt:
		return crypt.SHA256.New().Verify(hash, key) == nil
	case SHA512Crypt:
		return crypt.SHA512.New().Verify(hash, key) == nil
	}
	return false
}

// NeedsRehash reports whether hash was produced by a scheme other than the
// configured one.
func (h *Hasher) NeedsRehash(hash string) bool {
	return SchemeOf(hash) != h.scheme
}

// SchemeOf identifies a stored hash by its modular-crypt prefix. It returns
// "" when the prefix is not recognized.
func SchemeOf(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$6$"):
		return SHA512Crypt
	case strings.HasPrefix(hash, "$5$"):
		return SHA256Crypt
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return Bcrypt
	}
	return ""
}

// Validate enforces the length rules applied at registration and reset.
// Length is counted in characters, not bytes.
func Validate(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < MinLength {
		return ErrTooShort
	}
	if n > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Rules is the human-readable form of Validate, for form hints.
func Rules() string {
	return fmt.Sprintf("Use %d to %d characters.", MinLength, MaxLength)
}

func (h *Hasher) prepare(pw string) []byte {
	if len(h.salt) == 0 {
		return []byte(pw)
	}
	mac := hmac.New(sha512.New, h.salt)
	mac.Write([]byte(pw))
	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
