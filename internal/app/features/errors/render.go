// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/refstack/refstack/internal/app/system/viewdata"
)

// RenderForbidden shows a friendly access error page with a message.
// If backURL is empty, it resolves a safe back URL with a default fallback.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	render(w, r, http.StatusForbidden, "Access denied", msg, backURL)
}

// RenderNotFound shows the 404 page.
func RenderNotFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusNotFound, "Page not found", "We couldn't find the page you were looking for.", "/")
}

// RenderError shows a generic error page with the given status.
func RenderError(w http.ResponseWriter, r *http.Request, status int, msg, backURL string) {
	render(w, r, status, http.StatusText(status), msg, backURL)
}

func render(w http.ResponseWriter, r *http.Request, status int, title, msg, backURL string) {
	if backURL == "" {
		backURL = "/"
	}
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(r, title, backURL),
		Status:  status,
		Message: msg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	templates.Render(w, r, "error_page", data)
}
