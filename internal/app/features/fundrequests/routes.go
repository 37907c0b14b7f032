// internal/app/features/fundrequests/routes.go
package fundrequests

import (
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
)

// Routes mounts the fund request endpoints under /api/fund-requests.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.Create)
		pr.Get("/", h.List)
		pr.Get("/{id}", h.Get)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.AdminRoles...))
		pr.Put("/{id}/status", h.Review)
	})

	return r
}
