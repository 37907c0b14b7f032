// internal/app/features/admin/routes.go
package admin

import (
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
)

// Routes mounts the admin endpoints (typically under /api/admin).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.AdminRoles...))
		pr.Get("/dashboard-stats", h.ServeDashboardStats)
		pr.Get("/analytics", h.ServeAnalytics)
		pr.Get("/settings", h.ServeSettings)
		pr.Put("/settings", h.HandleSaveSettings)
		pr.Get("/management/locations", h.ServeChildLocations)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(ManagerRoles...))
		pr.Get("/management", h.ServeManagement)
		pr.Post("/management", h.HandleCreate)
		pr.Post("/management/search-member", h.HandleSearchMember)
		pr.Put("/management/{id}", h.HandleUpdate)
		pr.Delete("/management/{id}", h.HandleDelete)
	})

	return r
}
