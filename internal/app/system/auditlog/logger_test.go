package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/refstack/refstack/internal/app/system/auditlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(mode string, trustProxy bool) (*auditlog.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return auditlog.New(zap.New(core), mode, trustProxy), logs
}

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(auditlog.Event{Type: "test"})
	logger.LoginSuccess(req, "u1", "a@example.com")
	logger.LoginFailed(req, "", "a@example.com", auditlog.ReasonUnknownEmail)
	logger.Logout(req, "u1")
	logger.Registered(req, "u1", "a@example.com")
	logger.ResetRequested(req, "", "a@example.com", false)
	logger.ResetTokenRejected(req, "expired")
	logger.PasswordReset(req, "u1", "a@example.com")
	logger.PasswordRehashed("u1", "sha512_crypt")
	logger.Throttled(req, "a@example.com", "/login")
}

func TestLogger_ModeOff(t *testing.T) {
	logger, logs := newObserved(auditlog.ModeOff, false)

	logger.LoginSuccess(httptest.NewRequest("POST", "/login", nil), "u1", "a@example.com")

	if logs.Len() != 0 {
		t.Errorf("expected no entries, got %d", logs.Len())
	}
}

func TestLogger_LoginSuccess(t *testing.T) {
	logger, logs := newObserved(auditlog.ModeLog, false)
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "192.0.2.10:5555"

	logger.LoginSuccess(req, "u1", "a@example.com")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.InfoLevel {
		t.Errorf("level: got %v", e.Level)
	}
	ctx := e.ContextMap()
	if ctx["audit"] != true || ctx["event_type"] != auditlog.EventLoginSuccess {
		t.Errorf("unexpected fields %v", ctx)
	}
	if ctx["ip"] != "192.0.2.10" || ctx["user_id"] != "u1" {
		t.Errorf("unexpected ip/user %v", ctx)
	}
}

func TestLogger_FailuresAreWarnings(t *testing.T) {
	logger, logs := newObserved(auditlog.ModeLog, true)
	req := httptest.NewRequest("POST", "/login", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.3")

	logger.LoginFailed(req, "", "a@example.com", auditlog.ReasonBadPassword)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level: got %v", entries[0].Level)
	}
	ctx := entries[0].ContextMap()
	if ctx["failure_reason"] != auditlog.ReasonBadPassword {
		t.Errorf("failure_reason: %v", ctx["failure_reason"])
	}
	if ctx["ip"] != "198.51.100.3" {
		t.Errorf("ip: %v", ctx["ip"])
	}
	if _, ok := ctx["user_id"]; ok {
		t.Error("user_id should be omitted when empty")
	}
}

func TestLogger_Details(t *testing.T) {
	logger, logs := newObserved(auditlog.ModeLog, false)

	logger.PasswordRehashed("u1", "bcrypt")

	ctx := logs.All()[0].ContextMap()
	if ctx["detail_scheme"] != "bcrypt" {
		t.Errorf("detail_scheme: %v", ctx["detail_scheme"])
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{"log", "off"} {
		if !auditlog.ValidMode(m) {
			t.Errorf("%q should be valid", m)
		}
	}
	if auditlog.ValidMode("db") {
		t.Error(`"db" should be invalid`)
	}
}
