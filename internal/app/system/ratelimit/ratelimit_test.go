package ratelimit

import (
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestLimiter_AllowUpToLimit(t *testing.T) {
	clk := newClock()
	l := newLimiter(3, time.Minute, clk.Now)

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("4th hit should be limited")
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("Remaining: got %d, want 0", got)
	}
	if !l.Allow("other") {
		t.Error("keys should be independent")
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	clk := newClock()
	l := newLimiter(1, time.Minute, clk.Now)

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("second hit should be limited")
	}
	clk.Advance(time.Minute + time.Second)
	if !l.Allow("k") {
		t.Error("hit after window should be allowed")
	}
}

func TestLimiter_ResetAndSweep(t *testing.T) {
	clk := newClock()
	l := newLimiter(1, time.Minute, clk.Now)

	l.Allow("a")
	l.Reset("a")
	if got := l.Remaining("a"); got != 1 {
		t.Errorf("Remaining after Reset: got %d, want 1", got)
	}

	l.Allow("b")
	clk.Advance(2 * time.Minute)
	l.sweep()
	l.mu.Lock()
	n := len(l.windows)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("sweep left %d windows", n)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := New(1, time.Minute)
	l.Stop()
	l.Stop()
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	r.Header.Set("X-Real-IP", "198.51.100.10")

	if got := ClientIP(r, false); got != "192.0.2.1" {
		t.Errorf("untrusted: got %q", got)
	}
	if got := ClientIP(r, true); got != "198.51.100.9" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}

	r.Header.Del("X-Forwarded-For")
	if got := ClientIP(r, true); got != "198.51.100.10" {
		t.Errorf("X-Real-IP: got %q", got)
	}

	r.Header.Del("X-Real-IP")
	r.RemoteAddr = "192.0.2.5"
	if got := ClientIP(r, true); got != "192.0.2.5" {
		t.Errorf("portless RemoteAddr: got %q", got)
	}
}

func TestGuard_EmailLimitAndSuccess(t *testing.T) {
	g := NewGuard(100, time.Minute, 2, time.Minute)
	defer g.Stop()
	r := httptest.NewRequest("POST", "/login", nil)

	for i := 0; i < 2; i++ {
		if msg := g.Check(r, "Ada@Example.com"); msg != "" {
			t.Fatalf("attempt %d blocked: %s", i+1, msg)
		}
	}
	if msg := g.Check(r, " ada@example.com "); msg == "" {
		t.Fatal("expected per-email limit")
	}

	g.Succeeded("ADA@example.com")
	if msg := g.Check(r, "ada@example.com"); msg != "" {
		t.Errorf("expected reset after success, got %q", msg)
	}
}

func TestGuard_IPLimit(t *testing.T) {
	g := NewGuard(1, time.Minute, 100, time.Minute)
	defer g.Stop()
	r := httptest.NewRequest("POST", "/login", nil)

	if msg := g.Check(r, "a@example.com"); msg != "" {
		t.Fatalf("first attempt blocked: %s", msg)
	}
	if msg := g.Check(r, "b@example.com"); msg == "" {
		t.Error("expected per-address limit")
	}
}

func TestGuard_Nil(t *testing.T) {
	var g *Guard
	if msg := g.Check(httptest.NewRequest("GET", "/", nil), "x"); msg != "" {
		t.Errorf("nil guard should allow, got %q", msg)
	}
	g.Succeeded("x")
	g.Stop()
}

func TestWaitPhrase(t *testing.T) {
	tests := map[time.Duration]string{
		30 * time.Second: "a minute",
		time.Minute:      "a minute",
		5 * time.Minute:  "5 minutes",
		10 * time.Minute: "10 minutes",
		time.Hour:        "an hour",
		90 * time.Minute: "2 hours",
	}
	for d, want := range tests {
		if got := waitPhrase(d); got != want {
			t.Errorf("waitPhrase(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestNewLoginGuard_Limits(t *testing.T) {
	g := NewLoginGuard()
	defer g.Stop()
	r := httptest.NewRequest("POST", "/login", nil)

	for i := 0; i < 5; i++ {
		if msg := g.Check(r, "ada@example.com"); msg != "" {
			t.Fatalf("attempt %d blocked: %s", i+1, msg)
		}
	}
	if got := g.Check(r, "ada@example.com"); got != "Too many attempts for this account. Please wait 5 minutes." {
		t.Errorf("6th attempt for one email: got %q", got)
	}

	// Four more addresses bring the IP to its tenth allowed attempt.
	for i := 0; i < 4; i++ {
		if msg := g.Check(r, "other"+strconv.Itoa(i)+"@example.com"); msg != "" {
			t.Fatalf("ip attempt %d blocked: %s", i+7, msg)
		}
	}
	if got := g.Check(r, "fresh@example.com"); got != "Too many attempts. Please wait a minute before trying again." {
		t.Errorf("11th attempt from one address: got %q", got)
	}
}

func TestNewResetGuard_Limits(t *testing.T) {
	g := NewResetGuard()
	defer g.Stop()
	r := httptest.NewRequest("POST", "/reset", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	for i := 0; i < 3; i++ {
		if msg := g.Check(r, "ada@example.com"); msg != "" {
			t.Fatalf("attempt %d blocked: %s", i+1, msg)
		}
	}
	if got := g.Check(r, "ada@example.com"); got != "Too many attempts for this account. Please wait an hour." {
		t.Errorf("4th request for one email: got %q", got)
	}

	// Spoofed forwarding headers are ignored unless the proxy is trusted.
	r.Header.Set("X-Forwarded-For", "198.51.100.2")
	if msg := g.Check(r, "bob@example.com"); msg != "" {
		t.Fatalf("5th request from one address blocked: %s", msg)
	}
	if got := g.Check(r, "carol@example.com"); got != "Too many attempts. Please wait 10 minutes before trying again." {
		t.Errorf("6th request from one address: got %q", got)
	}
}
