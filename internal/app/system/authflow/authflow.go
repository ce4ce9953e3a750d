// Package authflow holds the steps shared by every way of ending up signed
// in: password login, registration and a completed password reset.
package authflow

import (
	"context"
	"net/http"
	"time"

	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/ratelimit"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"github.com/refstack/refstack/internal/domain/models"
	"go.uber.org/zap"
)

// Completer records a successful authentication and issues the session.
type Completer struct {
	Users      userstore.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
	TrustProxy bool

	now func() time.Time
}

// NewCompleter returns a Completer.
func NewCompleter(users userstore.Store, sm *auth.SessionManager, trustProxy bool, logger *zap.Logger) *Completer {
	return &Completer{
		Users:      users,
		SessionMgr: sm,
		Log:        logger,
		TrustProxy: trustProxy,
		now:        time.Now,
	}
}

// Complete stamps the login on u and writes the session cookie. Failure to
// record the login is logged and ignored; failure to save the session is
// returned.
func (c *Completer) Complete(w http.ResponseWriter, r *http.Request, u *models.User) error {
	ip := ratelimit.ClientIP(r, c.TrustProxy)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := c.Users.RecordLogin(ctx, u.ID, ip, c.now().UTC()); err != nil {
		c.Log.Warn("record login failed", zap.Error(err), zap.String("user_id", u.ID))
	}

	if err := c.SessionMgr.SignIn(w, r, auth.SessionUser{
		ID:    u.ID,
		Name:  u.DisplayName(),
		Email: u.Email,
	}); err != nil {
		return err
	}

	c.Log.Info("user signed in",
		zap.String("user_id", u.ID),
		zap.String("ip", ip))
	return nil
}
