// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	uierrors "github.com/refstack/refstack/internal/app/features/errors"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/auditlog"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/authflow"
	"github.com/refstack/refstack/internal/app/system/normalize"
	"github.com/refstack/refstack/internal/app/system/passwords"
	"github.com/refstack/refstack/internal/app/system/ratelimit"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"github.com/refstack/refstack/internal/app/system/viewdata"
	"go.uber.org/zap"
)

const (
	msgMissing  = "Please enter your email and password."
	msgInvalid  = "Invalid email or password."
	msgDisabled = "Your account is disabled. Please contact the site administrators."
	msgSession  = "Unable to create session. Please try again."
)

type Handler struct {
	Users         userstore.Store
	Hasher        *passwords.Hasher
	SessionMgr    *auth.SessionManager
	Completer     *authflow.Completer
	Guard         *ratelimit.Guard // nil disables throttling
	ErrLog        *uierrors.ErrorLogger
	Log           *zap.Logger
	Audit         *auditlog.Logger // optional
	PostLoginPath string

	dummyOnce sync.Once
	dummyHash string
}

func NewHandler(
	users userstore.Store,
	hasher *passwords.Hasher,
	sessionMgr *auth.SessionManager,
	completer *authflow.Completer,
	guard *ratelimit.Guard,
	errLog *uierrors.ErrorLogger,
	postLoginPath string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:         users,
		Hasher:        hasher,
		SessionMgr:    sessionMgr,
		Completer:     completer,
		Guard:         guard,
		ErrLog:        errLog,
		Log:           logger,
		PostLoginPath: postLoginPath,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type loginFormData struct {
	viewdata.BaseVM
	Error     string
	Email     string
	ReturnURL string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ret := query.Get(r, "return")

	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, urlutil.SafeReturn(ret, "", h.PostLoginPath), http.StatusSeeOther)
		return
	}

	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Sign in", "/").WithFlashes(w, r, h.SessionMgr),
		ReturnURL: ret,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	email := normalize.Email(r.FormValue("email"))
	password := r.FormValue("password")
	ret := strings.TrimSpace(r.FormValue("return"))

	if email == "" || password == "" {
		h.Audit.LoginFailed(r, "", email, auditlog.ReasonMissingFields)
		h.renderFormWithError(w, r, msgMissing, email, ret)
		return
	}

	if msg := h.Guard.Check(r, email); msg != "" {
		h.Log.Warn("login throttled", zap.String("email", email))
		h.Audit.Throttled(r, email, "/login")
		w.WriteHeader(http.StatusTooManyRequests)
		h.renderFormWithError(w, r, msg, email, ret)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		// Burn a hash so unknown emails take as long as wrong passwords.
		h.Hasher.Verify(h.dummy(), password)
		h.Log.Info("login failed: unknown email", zap.String("email", email))
		h.Audit.LoginFailed(r, "", email, auditlog.ReasonUnknownEmail)
		h.renderFormWithError(w, r, msgInvalid, email, ret)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "DB find user", err, "A server error occurred.", "/login")
		return
	}

	if !h.Hasher.Verify(u.PasswordHash, password) {
		h.Log.Info("login failed: bad password", zap.String("user_id", u.ID))
		h.Audit.LoginFailed(r, u.ID, email, auditlog.ReasonBadPassword)
		h.renderFormWithError(w, r, msgInvalid, email, ret)
		return
	}

	if !u.Active {
		h.Log.Info("login failed: account disabled", zap.String("user_id", u.ID))
		h.Audit.LoginFailed(r, u.ID, email, auditlog.ReasonDisabled)
		h.renderFormWithError(w, r, msgDisabled, email, ret)
		return
	}

	if h.Hasher.NeedsRehash(u.PasswordHash) {
		h.upgradeHash(ctx, u.ID, password)
	}

	if err := h.Completer.Complete(w, r, u); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID))
		h.renderFormWithError(w, r, msgSession, email, ret)
		return
	}
	h.Guard.Succeeded(email)
	h.Audit.LoginSuccess(r, u.ID, email)

	http.Redirect(w, r, urlutil.SafeReturn(ret, "", h.PostLoginPath), http.StatusSeeOther)
}

// upgradeHash re-hashes a password stored under an older scheme. Failure
// leaves the old hash in place; it still verifies.
func (h *Handler) upgradeHash(ctx context.Context, userID, password string) {
	hash, err := h.Hasher.Hash(password)
	if err == nil {
		err = h.Users.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		h.Log.Warn("password rehash failed", zap.Error(err), zap.String("user_id", userID))
		return
	}
	h.Log.Info("password rehashed",
		zap.String("user_id", userID),
		zap.String("scheme", h.Hasher.Scheme()))
	h.Audit.PasswordRehashed(userID, h.Hasher.Scheme())
}

func (h *Handler) dummy() string {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = h.Hasher.Hash("refstack-timing-equalizer")
	})
	return h.dummyHash
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, msg, email, ret string) {
	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Sign in", "/"),
		Error:     msg,
		Email:     email,
		ReturnURL: ret,
	})
}
