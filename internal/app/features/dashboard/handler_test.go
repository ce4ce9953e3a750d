package dashboard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/refstack/refstack/internal/app/features/dashboard"
	uierrors "github.com/refstack/refstack/internal/app/features/errors"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*dashboard.Handler, *testutil.Fixtures, *auth.SessionManager) {
	t.Helper()
	store := userstore.NewSQL(testutil.SetupTestDB(t))
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return dashboard.NewHandler(store, sm, uierrors.NewErrorLogger(logger), logger), testutil.NewFixtures(t, store), sm
}

func TestRoutes_RequireSignedIn(t *testing.T) {
	h, _, sm := newTestHandler(t)
	router := dashboard.Routes(h, sm)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestServeDashboard_MissingAccountSignsOut(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := testutil.NewAuthenticatedRequest("GET", "/dashboard", testutil.DefaultUser())
	rec := httptest.NewRecorder()
	h.ServeDashboard(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location: got %q", loc)
	}
	expired := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("expected session cookie to be expired")
	}
}

func TestServeDashboard_ExistingUser(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateUser(ctx, "Ada Lovelace", "ada@example.com", "secret-pw")

	req := testutil.NewAuthenticatedRequest("GET", "/dashboard", testutil.UserFrom(u))
	rec := httptest.NewRecorder()

	// Rendering needs a booted template engine; the lookup must not redirect.
	func() {
		defer func() { recover() }()
		h.ServeDashboard(rec, req)
	}()

	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("unexpected redirect to %q", loc)
	}
}

func TestServeDashboard_NoUser(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeDashboard(rec, httptest.NewRequest("GET", "/dashboard", nil))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status: got %d", rec.Code)
	}
}
