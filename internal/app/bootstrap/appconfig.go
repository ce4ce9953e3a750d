// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for RefStack.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, log level, CORS); everything here is
// RefStack's own.
type AppConfig struct {
	// Database. The scheme of DatabaseURL picks the backend:
	// sqlite://, postgres:// or mongodb://.
	DatabaseURL      string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Debug relaxes cookie security and reloads templates on each request.
	Debug bool

	// SecretKey signs session cookies, CSRF tokens and recovery tokens.
	SecretKey     string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	// Account security
	PasswordHash        string // sha512_crypt, sha256_crypt or bcrypt
	PasswordSalt        string // HMAC salt applied before hashing; defaults to SecretKey
	PostLoginView       string // endpoint name ("dashboard") or absolute path
	Recoverable         bool   // enables /reset
	Registerable        bool   // enables /register
	EmailSender         string // From for account mail; a bare domain becomes no-reply@domain
	ResetPasswordWithin time.Duration

	// SMTP
	MailServer   string
	MailPort     int
	MailUseSSL   bool
	MailUseTLS   bool
	MailUsername string
	MailPassword string

	// Mailgun takes over from SMTP when MailgunKey is set.
	MailgunKey    string
	MailgunDomain string
	MailgunAPI    string // API base override; blank uses mailgun-go's default

	MailQueueSize int

	// Base URL for links in emails (password reset, welcome).
	BaseURL string

	// TrustProxy honours X-Forwarded-For when recording login addresses
	// and throttling. Enable only behind a proxy that sets it.
	TrustProxy bool

	// AuditAuth is "log" to emit account audit events, "off" to drop them.
	AuditAuth string

	// Timeouts, zero keeps the built-in default.
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutMail   time.Duration
}
