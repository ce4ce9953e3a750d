package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/refstack/refstack/internal/app/system/auth"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

// fetcherFunc adapts a func to auth.UserFetcher.
type fetcherFunc func(ctx context.Context, id string) *auth.SessionUser

func (f fetcherFunc) FetchUser(ctx context.Context, id string) *auth.SessionUser { return f(ctx, id) }

// signedInCookies runs SignIn and returns the resulting cookies.
func signedInCookies(t *testing.T, sm *auth.SessionManager, u auth.SessionUser) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest("POST", "/login", nil)
	rec := httptest.NewRecorder()
	if err := sm.SignIn(rec, req, u); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	return rec.Result().Cookies()
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	_, err := auth.NewSessionManager("", "s", "", time.Hour, false, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for empty session key")
	}
}

func TestNewSessionManager_CookieOptions(t *testing.T) {
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "s", "refstack.org", time.Hour, true, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	opts := sm.Store().Options
	if !opts.Secure || !opts.HttpOnly {
		t.Errorf("expected Secure+HttpOnly, got %+v", opts)
	}
	if opts.SameSite != http.SameSiteNoneMode {
		t.Errorf("SameSite: got %v, want None", opts.SameSite)
	}
	if opts.MaxAge != 3600 {
		t.Errorf("MaxAge: got %d, want 3600", opts.MaxAge)
	}
	if opts.Domain != "refstack.org" {
		t.Errorf("Domain: got %q", opts.Domain)
	}
}

func TestRequireSignedIn_NoUser_RedirectsToLogin(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/dashboard?tab=1", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	location := rec.Header().Get("Location")
	if location != "/login?return=%2Fdashboard%3Ftab%3D1" {
		t.Errorf("unexpected redirect %q", location)
	}
}

func TestRequireSignedIn_NoUser_API_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/data", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireSignedIn_NoUser_HTMX_ReturnsHXRedirect(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if hx := rec.Header().Get("HX-Redirect"); !strings.HasPrefix(hx, "/login") {
		t.Errorf("expected HX-Redirect to /login, got %q", hx)
	}
}

func TestRequireSignedIn_WithUser_Proceeds(t *testing.T) {
	sm := newTestSessionManager(t)

	called := false
	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Email: "user@example.com"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("expected handler to be called")
	}
}

func TestSignIn_LoadSessionUser_RoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	cookies := signedInCookies(t, sm, auth.SessionUser{ID: "u1", Name: "Ada", Email: "ada@example.com"})

	var got *auth.SessionUser
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected user in context")
	}
	if got.ID != "u1" || got.Email != "ada@example.com" || got.Name != "Ada" {
		t.Errorf("unexpected user %+v", got)
	}
}

func TestLoadSessionUser_FetcherDropsInactiveUser(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(fetcherFunc(func(ctx context.Context, id string) *auth.SessionUser { return nil }))
	cookies := signedInCookies(t, sm, auth.SessionUser{ID: "u1", Email: "ada@example.com"})

	found := true
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if found {
		t.Error("expected no user when fetcher returns nil")
	}
}

func TestLoadSessionUser_FetcherRefreshesUser(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(fetcherFunc(func(ctx context.Context, id string) *auth.SessionUser {
		return &auth.SessionUser{ID: id, Name: "Renamed", Email: "new@example.com"}
	}))
	cookies := signedInCookies(t, sm, auth.SessionUser{ID: "u1", Name: "Old", Email: "old@example.com"})

	var got *auth.SessionUser
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.Name != "Renamed" {
		t.Errorf("expected refreshed user, got %+v", got)
	}
}

func TestLoadSessionUser_NoCookie(t *testing.T) {
	sm := newTestSessionManager(t)

	found := true
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = auth.CurrentUser(r)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if found {
		t.Error("expected no user without a session cookie")
	}
}

func TestSignOut_ExpiresCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	cookies := signedInCookies(t, sm, auth.SessionUser{ID: "u1"})

	req := httptest.NewRequest("GET", "/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	if err := sm.SignOut(rec, req); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			found = true
			if c.MaxAge != -1 {
				t.Errorf("cookie MaxAge: got %d, want -1", c.MaxAge)
			}
		}
	}
	if !found {
		t.Error("expected session cookie to be set for deletion")
	}
}

func TestFlashes(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	sm.AddFlash(rec, req, "Password changed.")

	req2 := httptest.NewRequest("GET", "/dashboard", nil)
	for _, c := range rec.Result().Cookies() {
		req2.AddCookie(c)
	}
	got := sm.PopFlashes(httptest.NewRecorder(), req2)

	if len(got) != 1 || got[0] != "Password changed." {
		t.Errorf("PopFlashes: got %v", got)
	}
}

func TestCurrentUser_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)

	user, ok := auth.CurrentUser(req)

	if ok {
		t.Error("expected ok to be false when no user in context")
	}
	if user != nil {
		t.Error("expected user to be nil when no user in context")
	}
}
