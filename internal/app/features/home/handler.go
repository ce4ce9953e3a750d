package home

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/viewdata"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	SessionMgr    *auth.SessionManager
	PostLoginPath string
	Log           *zap.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, postLoginPath string, logger *zap.Logger) *Handler {
	return &Handler{
		SessionMgr:    sessionMgr,
		PostLoginPath: postLoginPath,
		Log:           logger,
	}
}

type homeData struct {
	viewdata.BaseVM
	ContinueURL string // where signed-in users head next
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	data := homeData{
		BaseVM:      viewdata.NewBaseVM(r, "Welcome", "/").WithFlashes(w, r, h.SessionMgr),
		ContinueURL: h.PostLoginPath,
	}

	templates.Render(w, r, "home", data)
}
