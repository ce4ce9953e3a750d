// internal/app/features/register/handler.go
package register

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	uierrors "github.com/refstack/refstack/internal/app/features/errors"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/auditlog"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/authflow"
	"github.com/refstack/refstack/internal/app/system/inputval"
	"github.com/refstack/refstack/internal/app/system/mailer"
	"github.com/refstack/refstack/internal/app/system/normalize"
	"github.com/refstack/refstack/internal/app/system/passwords"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"github.com/refstack/refstack/internal/app/system/viewdata"
	"github.com/refstack/refstack/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves self-service sign-up.
type Handler struct {
	Users         userstore.Store
	Hasher        *passwords.Hasher
	Completer     *authflow.Completer
	Mail          mailer.Sender
	ErrLog        *uierrors.ErrorLogger
	Log           *zap.Logger
	Audit         *auditlog.Logger // optional
	BaseURL       string // absolute site URL for links in mail
	PostLoginPath string
}

func NewHandler(
	users userstore.Store,
	hasher *passwords.Hasher,
	completer *authflow.Completer,
	mail mailer.Sender,
	errLog *uierrors.ErrorLogger,
	baseURL, postLoginPath string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:         users,
		Hasher:        hasher,
		Completer:     completer,
		Mail:          mail,
		ErrLog:        errLog,
		Log:           logger,
		BaseURL:       baseURL,
		PostLoginPath: postLoginPath,
	}
}

type registerFormData struct {
	viewdata.BaseVM
	Error         string
	Errors        inputval.FieldErrors
	FullName      string
	Email         string
	PasswordRules string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /register                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, h.PostLoginPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, registerFormData{})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /register                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleRegisterPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/register")
		return
	}

	form := registerFormData{
		FullName: normalize.Name(r.FormValue("full_name")),
		Email:    normalize.Email(r.FormValue("email")),
	}
	password := r.FormValue("password")

	if fe := inputval.Registration(form.FullName, form.Email, password, r.FormValue("password_confirm")); len(fe) > 0 {
		form.Errors = fe
		form.Error = fe.First("email", "password", "password_confirm", "full_name")
		h.render(w, r, form)
		return
	}

	hash, err := h.Hasher.Hash(password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "A server error occurred.", "/register")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName:     form.FullName,
		Email:        form.Email,
		PasswordHash: hash,
		Active:       true,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		form.Error = "An account with that email already exists."
		form.Errors = inputval.FieldErrors{"email": form.Error}
		h.render(w, r, form)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create user failed", err, "A server error occurred.", "/register")
		return
	}
	h.Log.Info("user registered", zap.String("user_id", u.ID), zap.String("email", u.Email))
	h.Audit.Registered(r, u.ID, u.Email)

	h.sendWelcome(r.Context(), u)

	if err := h.Completer.Complete(w, r, &u); err != nil {
		// The account exists; let them sign in by hand.
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.PostLoginPath, http.StatusSeeOther)
}

// sendWelcome mails the new user. Failure never blocks registration.
func (h *Handler) sendWelcome(parent context.Context, u models.User) {
	if h.Mail == nil {
		return
	}
	msg := mailer.BuildWelcomeEmail(mailer.WelcomeEmailData{
		SiteName:     viewdata.SiteName,
		Email:        u.Email,
		DashboardURL: h.BaseURL + h.PostLoginPath,
	})
	msg.To = u.Email

	ctx, cancel := context.WithTimeout(parent, timeouts.Mail())
	defer cancel()
	if err := h.Mail.Send(ctx, msg); err != nil {
		h.Log.Warn("welcome email failed", zap.Error(err), zap.String("user_id", u.ID))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data registerFormData) {
	data.BaseVM = viewdata.NewBaseVM(r, "Register", "/")
	data.PasswordRules = passwords.Rules()
	templates.Render(w, r, "register", data)
}
