// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter counts hits per key in fixed windows. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit hits per key within duration.
// Expired windows are swept in the background until Stop is called.
func New(limit int, duration time.Duration) *Limiter {
	l := newLimiter(limit, duration, time.Now)
	go l.sweepLoop(duration * 2)
	return l
}

func newLimiter(limit int, duration time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      now,
		stop:     make(chan struct{}),
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many hits key has left in its current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.expiresAt) {
		return l.limit
	}
	if rem := l.limit - w.count; rem > 0 {
		return rem
	}
	return 0
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Stop ends the background sweep. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, w := range l.windows {
		if now.After(w.expiresAt) {
			delete(l.windows, key)
		}
	}
}

func (l *Limiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// ClientIP extracts the client address from r. Forwarding headers are only
// honoured when trustProxy is set; otherwise a client could pick its own key.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Guard throttles credential endpoints (sign-in and password reset) both by
// client address and by the email address being targeted.
type Guard struct {
	ip         *Limiter
	email      *Limiter
	TrustProxy bool
}

// NewGuard returns a Guard with the given per-address and per-email limits.
func NewGuard(ipLimit int, ipWindow time.Duration, emailLimit int, emailWindow time.Duration) *Guard {
	return &Guard{
		ip:    New(ipLimit, ipWindow),
		email: New(emailLimit, emailWindow),
	}
}

// NewLoginGuard allows 10 attempts per address per minute and 5 per email
// every 5 minutes.
func NewLoginGuard() *Guard {
	return NewGuard(10, time.Minute, 5, 5*time.Minute)
}

// NewResetGuard allows 5 reset requests per address per 10 minutes and 3 per
// email per hour.
func NewResetGuard() *Guard {
	return NewGuard(5, 10*time.Minute, 3, time.Hour)
}

// Check records an attempt and returns a user-facing message when it is
// over either limit. An empty message means the attempt may proceed.
func (g *Guard) Check(r *http.Request, email string) string {
	if g == nil {
		return ""
	}
	if !g.ip.Allow(ClientIP(r, g.TrustProxy)) {
		return "Too many attempts. Please wait " + waitPhrase(g.ip.duration) + " before trying again."
	}
	if key := emailKey(email); key != "" && !g.email.Allow(key) {
		return "Too many attempts for this account. Please wait " + waitPhrase(g.email.duration) + "."
	}
	return ""
}

// waitPhrase renders a window as "a minute", "10 minutes", "an hour" or
// "2 hours". A partial unit rounds up.
func waitPhrase(d time.Duration) string {
	if d >= time.Hour {
		n := int((d + time.Hour - 1) / time.Hour)
		if n == 1 {
			return "an hour"
		}
		return strconv.Itoa(n) + " hours"
	}
	n := int((d + time.Minute - 1) / time.Minute)
	if n <= 1 {
		return "a minute"
	}
	return strconv.Itoa(n) + " minutes"
}

// Succeeded clears the per-email counter after a successful attempt.
func (g *Guard) Succeeded(email string) {
	if g == nil {
		return
	}
	if key := emailKey(email); key != "" {
		g.email.Reset(key)
	}
}

// Stop ends both limiters' background sweeps.
func (g *Guard) Stop() {
	if g == nil {
		return
	}
	g.ip.Stop()
	g.email.Stop()
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
