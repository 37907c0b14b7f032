// internal/app/features/donations/routes.go
package donations

import (
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/auth"
)

// Routes mounts the donation endpoints under /api/donations.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/my-donations", h.Mine)
	r.Get("/stats", h.Stats)
	r.Post("/", h.Create)
	return r
}
