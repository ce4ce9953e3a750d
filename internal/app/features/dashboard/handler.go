// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/templates"
	uierrors "github.com/refstack/refstack/internal/app/features/errors"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"github.com/refstack/refstack/internal/app/system/viewdata"
	"github.com/refstack/refstack/internal/domain/models"
	"go.uber.org/zap"
)

const dateLayout = "Jan 2, 2006 15:04 MST"

type Handler struct {
	Users      userstore.Store
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(users userstore.Store, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type dashboardData struct {
	viewdata.BaseVM
	Profile     models.User
	MemberSince string
	LastLogin   string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /dashboard                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, su.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		// Session outlived the account.
		h.Log.Warn("dashboard: session user missing", zap.String("user_id", su.ID))
		if err := h.SessionMgr.SignOut(w, r); err != nil {
			h.Log.Error("sign out failed", zap.Error(err))
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "DB load user", err, "A server error occurred.", "/")
		return
	}

	data := dashboardData{
		BaseVM:      viewdata.NewBaseVM(r, "Dashboard", "/").WithFlashes(w, r, h.SessionMgr),
		Profile:     *u,
		MemberSince: formatTime(u.CreatedAt),
	}
	if u.LastLoginAt != nil {
		data.LastLogin = formatTime(*u.LastLoginAt)
	}

	templates.Render(w, r, "dashboard", data)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
