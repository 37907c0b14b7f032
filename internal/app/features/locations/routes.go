// internal/app/features/locations/routes.go
package locations

import "github.com/go-chi/chi/v5"

// Routes mounts the location lookups (typically under /api/locations).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeGet)
	return r
}
