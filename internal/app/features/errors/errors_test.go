package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/refstack/refstack/internal/app/system/auth"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// renderSafely runs fn and swallows the panic raised when no template
// engine is booted; only the status and logs are under test.
func renderSafely(fn func()) {
	defer func() { recover() }()
	fn()
}

func TestLogServerError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	el := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest("POST", "/login", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1"})
	rec := httptest.NewRecorder()

	renderSafely(func() {
		el.LogServerError(rec, req, "DB find user", errors.New("connection reset"), "A server error occurred.", "/login")
	})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rec.Code)
	}
	entries := logs.FilterMessage("DB find user").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("level: got %v", entries[0].Level)
	}
	ctx := entries[0].ContextMap()
	if ctx["path"] != "/login" || ctx["user_id"] != "u1" {
		t.Errorf("unexpected fields %v", ctx)
	}
}

func TestLogBadRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	el := NewErrorLogger(zap.New(core))

	rec := httptest.NewRecorder()
	renderSafely(func() {
		el.LogBadRequest(rec, httptest.NewRequest("POST", "/register", nil), "parse form failed", errors.New("bad"), "Invalid form data.", "/register")
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Error("expected a warn entry")
	}
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	renderSafely(func() {
		NewHandler().NotFound(rec, httptest.NewRequest("GET", "/nope", nil))
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	renderSafely(func() {
		NewHandler().Forbidden(rec, httptest.NewRequest("GET", "/forbidden", nil))
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", rec.Code)
	}
}
