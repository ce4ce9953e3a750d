// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"context"
	"html/template"
	"net/http"

	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
	"github.com/refstack/refstack/internal/app/system/auth"
)

// SiteName is shown in page titles, the header and outgoing mail.
const SiteName = "RefStack"

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/"),
//	}
type BaseVM struct {
	SiteName string

	// User context (from auth middleware)
	IsLoggedIn bool
	UserName   string
	UserEmail  string

	// Page context
	Title       string
	BackURL     string
	CurrentPath string

	// Feature switches for navigation links.
	Registerable bool
	Recoverable  bool

	// CSRF protection
	CSRFField template.HTML // hidden input; empty when CSRF middleware is not mounted

	// One-time messages popped from the session.
	Flashes []string
}

// Features are the account-feature switches shown in the nav bar.
type Features struct {
	Registerable bool
	Recoverable  bool
}

type featuresKey struct{}

// WithFeatures is middleware that makes f available to NewBaseVM for every
// request routed through it.
func WithFeatures(f Features) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), featuresKey{}, f)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FeaturesFrom returns the switches installed by WithFeatures, or the zero
// value (both off) when the middleware is absent.
func FeaturesFrom(r *http.Request) Features {
	f, _ := r.Context().Value(featuresKey{}).(Features)
	return f
}

// NewBaseVM creates a fully populated BaseVM for a page.
//
// Parameters:
//   - r: the HTTP request
//   - title: the page title
//   - backDefault: default URL for the back button if none in request
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	f := FeaturesFrom(r)
	vm := BaseVM{
		SiteName:     SiteName,
		Title:        title,
		BackURL:      httpnav.ResolveBackURL(r, backDefault),
		CurrentPath:  httpnav.CurrentPath(r),
		Registerable: f.Registerable,
		Recoverable:  f.Recoverable,
		CSRFField:    csrf.TemplateField(r),
	}
	if u, ok := auth.CurrentUser(r); ok {
		vm.IsLoggedIn = true
		vm.UserName = u.Name
		vm.UserEmail = u.Email
	}
	return vm
}

// WithFlashes pops queued flash messages into vm.
func (vm BaseVM) WithFlashes(w http.ResponseWriter, r *http.Request, sm *auth.SessionManager) BaseVM {
	if sm != nil {
		vm.Flashes = sm.PopFlashes(w, r)
	}
	return vm
}
