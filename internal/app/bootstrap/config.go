// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/refstack/refstack/internal/app/system/auditlog"
	"github.com/refstack/refstack/internal/app/system/dburl"
	"github.com/refstack/refstack/internal/app/system/passwords"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// PlaceholderSecret ships as the secret_key default. It is accepted in
// debug mode only.
const PlaceholderSecret = "#@#@#@#@#@#@#@#@#@#@#@#@#@#@#@#@"

// DefaultDatabaseURL is used when neither DATABASE_URL nor database_url is
// set: a sqlite file under ./tmp.
const DefaultDatabaseURL = "sqlite:///tmp/refstack.db"

// MinSecretLength is enforced on secret_key outside debug mode.
const MinSecretLength = 32

// appConfigKeys defines the configuration keys for RefStack.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: database_url, secret_key, etc.
//   - Environment variables: REFSTACK_DATABASE_URL, REFSTACK_SECRET_KEY, etc.
//   - Command-line flags: --database_url, --secret_key, etc.
//
// The database_url default is read from DATABASE_URL at load time, so the
// conventional platform variable works without the REFSTACK_ prefix.
func appConfigKeys() []config.AppKey {
	return []config.AppKey{
		{Name: "database_url", Default: defaultDatabaseURL(), Desc: "Database URL: sqlite:///path, postgres://..., or mongodb://..."},
		{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
		{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},
		{Name: "debug", Default: true, Desc: "Debug mode: insecure cookies allowed, templates reloaded"},

		{Name: "secret_key", Default: PlaceholderSecret, Desc: "Signing key for sessions, CSRF and reset tokens (32+ chars in production)"},
		{Name: "session_name", Default: "refstack-session", Desc: "Session cookie name"},
		{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
		{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

		{Name: "security_password_hash", Default: passwords.SHA512Crypt, Desc: "Password hash scheme: sha512_crypt, sha256_crypt or bcrypt"},
		{Name: "security_password_salt", Default: "", Desc: "HMAC salt applied to passwords before hashing (blank uses secret_key)"},
		{Name: "security_post_login_view", Default: "dashboard", Desc: "Where to go after sign-in: endpoint name or path"},
		{Name: "security_recoverable", Default: true, Desc: "Enable password recovery by email"},
		{Name: "security_registerable", Default: true, Desc: "Enable self-service registration"},
		{Name: "security_email_sender", Default: "refstack.org", Desc: "From address for account email (bare domain gets no-reply@)"},
		{Name: "security_reset_password_within", Default: "120h", Desc: "Lifetime of password reset links"},

		{Name: "mail_server", Default: "smtp.refstack.org", Desc: "SMTP server host"},
		{Name: "mail_port", Default: 465, Desc: "SMTP server port"},
		{Name: "mail_use_ssl", Default: true, Desc: "Connect to SMTP over implicit TLS"},
		{Name: "mail_use_tls", Default: false, Desc: "Upgrade SMTP with STARTTLS"},
		{Name: "mail_username", Default: "postmaster@refstack.org", Desc: "SMTP username"},
		{Name: "mail_password", Default: "", Desc: "SMTP password"},

		{Name: "mailgun_key", Default: "", Desc: "Mailgun API key; when set, mail is sent through Mailgun"},
		{Name: "mailgun_domain", Default: "refstack.org", Desc: "Mailgun sending domain"},
		{Name: "mailgun_api", Default: "", Desc: "Mailgun API base URL (blank for the default US region)"},

		{Name: "mail_queue_size", Default: 100, Desc: "Messages buffered for background delivery"},

		{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL for links in email"},
		{Name: "trust_proxy", Default: false, Desc: "Take the client address from X-Forwarded-For / X-Real-IP"},
		{Name: "audit_auth", Default: "log", Desc: "Account audit events: log or off"},

		{Name: "timeout_ping", Default: "2s", Desc: "Database ping timeout"},
		{Name: "timeout_short", Default: "5s", Desc: "Single-record database timeout"},
		{Name: "timeout_medium", Default: "10s", Desc: "Multi-step operation timeout"},
		{Name: "timeout_mail", Default: "20s", Desc: "Outbound email timeout"},
	}
}

func defaultDatabaseURL() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	return DefaultDatabaseURL
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, REFSTACK_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "REFSTACK", appConfigKeys())
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		DatabaseURL:      strings.TrimSpace(appValues.String("database_url")),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		Debug:            appValues.Bool("debug"),

		SecretKey:     appValues.String("secret_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 720*time.Hour),

		PasswordHash:        appValues.String("security_password_hash"),
		PasswordSalt:        appValues.String("security_password_salt"),
		PostLoginView:       appValues.String("security_post_login_view"),
		Recoverable:         appValues.Bool("security_recoverable"),
		Registerable:        appValues.Bool("security_registerable"),
		EmailSender:         appValues.String("security_email_sender"),
		ResetPasswordWithin: appValues.Duration("security_reset_password_within", 120*time.Hour),

		MailServer:   appValues.String("mail_server"),
		MailPort:     appValues.Int("mail_port"),
		MailUseSSL:   appValues.Bool("mail_use_ssl"),
		MailUseTLS:   appValues.Bool("mail_use_tls"),
		MailUsername: appValues.String("mail_username"),
		MailPassword: appValues.String("mail_password"),

		MailgunKey:    appValues.String("mailgun_key"),
		MailgunDomain: appValues.String("mailgun_domain"),
		MailgunAPI:    appValues.String("mailgun_api"),

		MailQueueSize: appValues.Int("mail_queue_size"),

		BaseURL:    strings.TrimRight(appValues.String("base_url"), "/"),
		TrustProxy: appValues.Bool("trust_proxy"),
		AuditAuth:  appValues.String("audit_auth"),

		TimeoutPing:   appValues.Duration("timeout_ping", 0),
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutMail:   appValues.Duration("timeout_mail", 0),
	}

	// The salt follows the secret unless set on its own.
	if appCfg.PasswordSalt == "" {
		appCfg.PasswordSalt = appCfg.SecretKey
	}

	// ConnectDB already pings under these, so apply them before any hook
	// touches a backend.
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Mail:   appCfg.TimeoutMail,
	})

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Every problem is reported, not just the first.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var problems []error

	u, err := dburl.Parse(appCfg.DatabaseURL)
	if err != nil {
		problems = append(problems, fmt.Errorf("database_url: %w", err))
	} else if u.Dialect == dburl.Mongo {
		if err := wafflemongo.ValidateURI(u.DSN); err != nil {
			problems = append(problems, fmt.Errorf("invalid MongoDB URI: %w", err))
		}
	}

	if !passwords.Supported(appCfg.PasswordHash) {
		problems = append(problems, fmt.Errorf("security_password_hash %q: %w (want one of %s)",
			appCfg.PasswordHash, passwords.ErrUnknownScheme, strings.Join(passwords.Schemes(), ", ")))
	}

	switch {
	case appCfg.SecretKey == "":
		problems = append(problems, errors.New("secret_key is empty"))
	case !appCfg.Debug && appCfg.SecretKey == PlaceholderSecret:
		problems = append(problems, errors.New("secret_key is the shipped placeholder; set a real key when debug is off"))
	case !appCfg.Debug && len(appCfg.SecretKey) < MinSecretLength:
		problems = append(problems, fmt.Errorf("secret_key must be at least %d characters when debug is off", MinSecretLength))
	}

	if appCfg.MailUseSSL && appCfg.MailUseTLS {
		problems = append(problems, errors.New("mail_use_ssl and mail_use_tls are mutually exclusive"))
	}
	if appCfg.MailPort < 1 || appCfg.MailPort > 65535 {
		problems = append(problems, fmt.Errorf("mail_port %d out of range", appCfg.MailPort))
	}
	if appCfg.MailQueueSize < 1 {
		problems = append(problems, fmt.Errorf("mail_queue_size %d must be positive", appCfg.MailQueueSize))
	}
	if appCfg.SessionName == "" {
		problems = append(problems, errors.New("session_name is empty"))
	}
	if !auditlog.ValidMode(appCfg.AuditAuth) {
		problems = append(problems, fmt.Errorf("audit_auth %q must be %q or %q", appCfg.AuditAuth, auditlog.ModeLog, auditlog.ModeOff))
	}

	if err := errors.Join(problems...); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	if appCfg.Debug {
		logger.Warn("debug mode is on; do not run like this in production")
	}
	return nil
}

// PostLoginPath resolves security_post_login_view to a local path.
// Endpoint names map to their route ("dashboard" -> "/dashboard").
func PostLoginPath(view string) string {
	view = strings.TrimSpace(view)
	switch view {
	case "", "index", "home":
		return "/"
	}
	if strings.HasPrefix(view, "/") && !strings.HasPrefix(view, "//") {
		return view
	}
	return "/" + strings.Trim(view, "/")
}
