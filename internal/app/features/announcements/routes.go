// internal/app/features/announcements/routes.go
package announcements

import (
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
)

// Routes mounts the announcement endpoints (typically under
// /api/announcements). Anyone signed in may read; admins publish.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.List)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.AdminRoles...))
		pr.Post("/", h.Create)
	})

	return r
}
