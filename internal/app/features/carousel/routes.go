// internal/app/features/carousel/routes.go
package carousel

import (
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
)

// Routes mounts the carousel endpoints under /api/carousel. Everything
// but the public listing is for super admins.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/public", h.Public)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.RoleSuperAdmin))
		pr.Get("/all", h.All)
		pr.Put("/bulk-update", h.BulkUpdate)
		pr.Post("/bulk-delete", h.BulkDelete)
		pr.Post("/", h.Upload)
		pr.Put("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)
	})

	return r
}
