// internal/app/features/reset/routes.go
package reset

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeRequest)
	r.Post("/", h.HandleRequestPost)
	r.Get("/{token}", h.ServeReset)
	r.Post("/{token}", h.HandleResetPost)
	return r
}
