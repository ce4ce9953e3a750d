// internal/app/features/reset/handler.go
package reset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	uierrors "github.com/refstack/refstack/internal/app/features/errors"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/auditlog"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/authflow"
	"github.com/refstack/refstack/internal/app/system/inputval"
	"github.com/refstack/refstack/internal/app/system/mailer"
	"github.com/refstack/refstack/internal/app/system/normalize"
	"github.com/refstack/refstack/internal/app/system/passwords"
	"github.com/refstack/refstack/internal/app/system/ratelimit"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"github.com/refstack/refstack/internal/app/system/tokens"
	"github.com/refstack/refstack/internal/app/system/viewdata"
	"github.com/refstack/refstack/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves password recovery: requesting a link by email and using
// the link to set a new password.
type Handler struct {
	Users         userstore.Store
	Hasher        *passwords.Hasher
	Tokens        *tokens.Signer
	SessionMgr    *auth.SessionManager
	Completer     *authflow.Completer
	Mail          mailer.Sender
	Guard         *ratelimit.Guard // nil disables throttling
	ErrLog        *uierrors.ErrorLogger
	Log           *zap.Logger
	Audit         *auditlog.Logger // optional
	BaseURL       string
	PostLoginPath string
}

func NewHandler(
	users userstore.Store,
	hasher *passwords.Hasher,
	signer *tokens.Signer,
	sessionMgr *auth.SessionManager,
	completer *authflow.Completer,
	mail mailer.Sender,
	guard *ratelimit.Guard,
	errLog *uierrors.ErrorLogger,
	baseURL, postLoginPath string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:         users,
		Hasher:        hasher,
		Tokens:        signer,
		SessionMgr:    sessionMgr,
		Completer:     completer,
		Mail:          mail,
		Guard:         guard,
		ErrLog:        errLog,
		Log:           logger,
		BaseURL:       baseURL,
		PostLoginPath: postLoginPath,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type requestFormData struct {
	viewdata.BaseVM
	Error string
	Email string
}

type sentData struct {
	viewdata.BaseVM
	Email     string
	ExpiresIn string
}

type resetFormData struct {
	viewdata.BaseVM
	Error         string
	Token         string
	Invalid       bool
	PasswordRules string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /reset                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRequest(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "reset_request", requestFormData{
		BaseVM: viewdata.NewBaseVM(r, "Reset password", "/login"),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /reset                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRequestPost sends reset instructions. The response is the same
// whether or not the email belongs to an account.
func (h *Handler) HandleRequestPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/reset")
		return
	}

	email := normalize.Email(r.FormValue("email"))
	if !inputval.IsValidEmail(email) {
		templates.Render(w, r, "reset_request", requestFormData{
			BaseVM: viewdata.NewBaseVM(r, "Reset password", "/login"),
			Error:  "Please enter a valid email address.",
			Email:  email,
		})
		return
	}

	if msg := h.Guard.Check(r, email); msg != "" {
		h.Log.Warn("reset request throttled", zap.String("email", email))
		h.Audit.Throttled(r, email, "/reset")
		w.WriteHeader(http.StatusTooManyRequests)
		templates.Render(w, r, "reset_request", requestFormData{
			BaseVM: viewdata.NewBaseVM(r, "Reset password", "/login"),
			Error:  msg,
			Email:  email,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		h.Log.Info("reset requested for unknown email", zap.String("email", email))
		h.Audit.ResetRequested(r, "", email, false)
	case err != nil:
		h.ErrLog.LogServerError(w, r, "DB find user", err, "A server error occurred.", "/reset")
		return
	case !u.Active:
		h.Log.Info("reset requested for disabled account", zap.String("user_id", u.ID))
		h.Audit.ResetRequested(r, u.ID, email, false)
	default:
		sent := h.sendInstructions(r.Context(), u)
		h.Audit.ResetRequested(r, u.ID, email, sent)
	}

	templates.Render(w, r, "reset_sent", sentData{
		BaseVM:    viewdata.NewBaseVM(r, "Check your email", "/login"),
		Email:     email,
		ExpiresIn: formatExpiry(h.Tokens.MaxAge()),
	})
}

// sendInstructions reports whether the reset mail was handed off.
func (h *Handler) sendInstructions(parent context.Context, u *models.User) bool {
	token, err := h.Tokens.Issue(u.ID, u.PasswordHash)
	if err != nil {
		h.Log.Error("issue reset token failed", zap.Error(err), zap.String("user_id", u.ID))
		return false
	}

	msg := mailer.BuildResetInstructionsEmail(mailer.ResetInstructionsData{
		SiteName:  viewdata.SiteName,
		ResetLink: h.BaseURL + "/reset/" + token,
		ExpiresIn: formatExpiry(h.Tokens.MaxAge()),
	})
	msg.To = u.Email

	ctx, cancel := context.WithTimeout(parent, timeouts.Mail())
	defer cancel()
	if err := h.Mail.Send(ctx, msg); err != nil {
		h.Log.Error("reset email failed", zap.Error(err), zap.String("user_id", u.ID))
		return false
	}
	h.Log.Info("reset instructions sent", zap.String("user_id", u.ID))
	return true
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /reset/{token}                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.userForToken(ctx, token); err != nil {
		h.renderInvalid(w, r, err)
		return
	}
	h.renderForm(w, r, token, "")
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /reset/{token}                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleResetPost(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/reset")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.userForToken(ctx, token)
	if err != nil {
		h.renderInvalid(w, r, err)
		return
	}

	password := r.FormValue("password")
	if fe := inputval.PasswordChange(password, r.FormValue("password_confirm")); len(fe) > 0 {
		h.renderForm(w, r, token, fe.First("password", "password_confirm"))
		return
	}

	hash, err := h.Hasher.Hash(password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "A server error occurred.", "/reset")
		return
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		h.ErrLog.LogServerError(w, r, "update password failed", err, "A server error occurred.", "/reset")
		return
	}
	h.Log.Info("password reset", zap.String("user_id", u.ID))
	h.Audit.PasswordReset(r, u.ID, u.Email)
	h.Guard.Succeeded(u.Email)

	h.sendNotice(r.Context(), u)

	if err := h.Completer.Complete(w, r, u); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.SessionMgr.AddFlash(w, r, "Your password has been reset.")
	http.Redirect(w, r, h.PostLoginPath, http.StatusSeeOther)
}

func (h *Handler) sendNotice(parent context.Context, u *models.User) {
	msg := mailer.BuildResetNoticeEmail(mailer.ResetNoticeData{
		SiteName:   viewdata.SiteName,
		Email:      u.Email,
		RecoverURL: h.BaseURL + "/reset",
	})
	msg.To = u.Email

	ctx, cancel := context.WithTimeout(parent, timeouts.Mail())
	defer cancel()
	if err := h.Mail.Send(ctx, msg); err != nil {
		h.Log.Warn("reset notice email failed", zap.Error(err), zap.String("user_id", u.ID))
	}
}

// errStaleToken means the token decoded but the account no longer accepts
// it: the password changed since it was issued, or the account is disabled.
var errStaleToken = errors.New("reset token no longer valid")

func (h *Handler) userForToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := h.Tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, errStaleToken
		}
		return nil, err
	}
	if !u.Active || !claims.Matches(u.PasswordHash) {
		return nil, errStaleToken
	}
	return u, nil
}

func (h *Handler) renderInvalid(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, tokens.ErrInvalid) && !errors.Is(err, errStaleToken) {
		h.ErrLog.LogServerError(w, r, "load reset user failed", err, "A server error occurred.", "/reset")
		return
	}
	h.Log.Info("reset token rejected", zap.Error(err))
	h.Audit.ResetTokenRejected(r, err.Error())
	w.WriteHeader(http.StatusBadRequest)
	templates.Render(w, r, "reset_password", resetFormData{
		BaseVM:  viewdata.NewBaseVM(r, "Reset password", "/reset"),
		Invalid: true,
	})
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, token, msg string) {
	templates.Render(w, r, "reset_password", resetFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Reset password", "/login"),
		Error:         msg,
		Token:         token,
		PasswordRules: passwords.Rules(),
	})
}

// formatExpiry renders d as "30 minutes", "1 hour" or "5 days".
func formatExpiry(d time.Duration) string {
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/time.Minute), "minute")
	}
}
