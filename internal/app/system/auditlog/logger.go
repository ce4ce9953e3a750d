// internal/app/system/auditlog/logger.go
package auditlog

import (
	"net/http"

	"github.com/refstack/refstack/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Event types.
const (
	EventLoginSuccess    = "login_success"
	EventLoginFailed     = "login_failed"
	EventLogout          = "logout"
	EventRegistered      = "registered"
	EventResetRequested  = "password_reset_requested"
	EventPasswordReset   = "password_reset"
	EventPasswordRehash  = "password_rehashed"
	EventThrottled       = "throttled"
	EventResetTokenBad   = "password_reset_token_rejected"
	categoryAuth         = "auth"
	auditMessage         = "audit event"
	auditMessageRejected = "audit event (failure)"
)

// Login failure reasons.
const (
	ReasonMissingFields = "missing_fields"
	ReasonUnknownEmail  = "unknown_email"
	ReasonBadPassword   = "bad_password"
	ReasonDisabled      = "account_disabled"
)

// Mode values for the audit_auth setting.
const (
	ModeLog = "log"
	ModeOff = "off"
)

// Event is one security-relevant account action.
type Event struct {
	Type          string
	UserID        string
	Email         string
	IP            string
	Success       bool
	FailureReason string
	Details       map[string]string
}

// Logger writes account events as structured log lines tagged audit=true,
// so they can be filtered out of the application log downstream.
// A nil *Logger is a no-op.
type Logger struct {
	log        *zap.Logger
	mode       string
	trustProxy bool
}

// New creates a Logger. mode is ModeLog or ModeOff.
func New(zapLog *zap.Logger, mode string, trustProxy bool) *Logger {
	return &Logger{log: zapLog, mode: mode, trustProxy: trustProxy}
}

// ValidMode reports whether mode is an accepted audit_auth value.
func ValidMode(mode string) bool {
	return mode == ModeLog || mode == ModeOff
}

// Log records event unless auditing is off.
func (l *Logger) Log(event Event) {
	if l == nil || l.mode == ModeOff {
		return
	}

	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", categoryAuth),
		zap.String("event_type", event.Type),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.log.Info(auditMessage, fields...)
	} else {
		l.log.Warn(auditMessageRejected, fields...)
	}
}

func (l *Logger) ip(r *http.Request) string {
	return ratelimit.ClientIP(r, l.trustProxy)
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(r *http.Request, userID, email string) {
	if l == nil {
		return
	}
	l.Log(Event{Type: EventLoginSuccess, UserID: userID, Email: email, IP: l.ip(r), Success: true})
}

// LoginFailed logs a rejected sign-in. userID is empty when the email is
// unknown.
func (l *Logger) LoginFailed(r *http.Request, userID, email, reason string) {
	if l == nil {
		return
	}
	l.Log(Event{Type: EventLoginFailed, UserID: userID, Email: email, IP: l.ip(r), FailureReason: reason})
}

// Throttled logs an attempt refused by rate limiting.
func (l *Logger) Throttled(r *http.Request, email, endpoint string) {
	if l == nil {
		return
	}
	l.Log(Event{
		Type:          EventThrottled,
		Email:         email,
		IP:            l.ip(r),
		FailureReason: "rate_limited",
		Details:       map[string]string{"endpoint": endpoint},
	})
}

// Logout logs a sign-out. userID may be empty for anonymous requests.
func (l *Logger) Logout(r *http.Request, userID string) {
	if l == nil {
		return
	}
	l.Log(Event{Type: EventLogout, UserID: userID, IP: l.ip(r), Success: true})
}

// Registered logs a new self-service account.
func (l *Logger) Registered(r *http.Request, userID, email string) {
	if l == nil {
		return
	}
	l.Log(Event{Type: EventRegistered, UserID: userID, Email: email, IP: l.ip(r), Success: true})
}

// ResetRequested logs a recovery request. sent reports whether mail went
// out (false for unknown or disabled accounts).
func (l *Logger) ResetRequested(r *http.Request, userID, email string, sent bool) {
	if l == nil {
		return
	}
	ev := Event{Type: EventResetRequested, UserID: userID, Email: email, IP: l.ip(r), Success: sent}
	if !sent {
		ev.FailureReason = "no_eligible_account"
	}
	l.Log(ev)
}

// ResetTokenRejected logs use of an invalid, expired or stale reset link.
func (l *Logger) ResetTokenRejected(r *http.Request, reason string) {
	if l == nil {
		return
	}
	l.Log(Event{Type: EventResetTokenBad, IP: l.ip(r), FailureReason: reason})
}

// PasswordReset logs a completed reset.
func (l *Logger) PasswordReset(r *http.Request, userID, email string) {
	if l == nil {
		return
	}
	l.Log(Event{Type: EventPasswordReset, UserID: userID, Email: email, IP: l.ip(r), Success: true})
}

// PasswordRehashed logs a stored hash upgraded to the configured scheme.
func (l *Logger) PasswordRehashed(userID, scheme string) {
	if l == nil {
		return
	}
	l.Log(Event{
		Type:    EventPasswordRehash,
		UserID:  userID,
		Success: true,
		Details: map[string]string{"scheme": scheme},
	})
}
