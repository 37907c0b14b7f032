// internal/app/features/emailverification/routes.go
package emailverification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the public verification endpoints under
// /api/email-verification. limit throttles the sending endpoints; pass nil
// for none.
func Routes(h *Handler, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(g chi.Router) {
		if limit != nil {
			g.Use(limit)
		}
		g.Post("/send", h.Send)
		g.Post("/resend", h.Send)
	})
	r.Post("/verify", h.Verify)
	r.Post("/check", h.Check)

	return r
}
