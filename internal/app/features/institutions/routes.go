// internal/app/features/institutions/routes.go
package institutions

import (
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
)

// Routes mounts the institution endpoints (typically under /api/institutions).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleRegister)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/{id}", h.ServeGet)
		pr.Put("/{id}", h.HandleUpdate)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.AdminRoles...))
		pr.Get("/", h.ServeList)
		pr.Delete("/{id}", h.HandleDelete)
	})
	return r
}
