// internal/app/features/login/routes.go
package login

import (
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
)

// Routes mounts the authentication endpoints (typically under /api/auth).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Public sign-in flows.
	r.Post("/login", h.HandleLogin)
	r.Post("/request-otp", h.HandleRequestOTP)
	r.Post("/verify-otp", h.HandleVerifyOTP)
	r.Post("/login-mpin", h.HandleLoginMPIN)
	r.Post("/forgot-mpin", h.HandleForgotMPIN)
	r.Post("/logout", h.HandleLogout)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/me", h.ServeMe)
		pr.Put("/password", h.HandlePassword)
		pr.Put("/2fa", h.HandleTwoFactor)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.RoleMember))
		pr.Post("/create-mpin", h.HandleCreateMPIN)
		pr.Get("/check-mpin", h.ServeCheckMPIN)
		pr.Post("/reset-mpin", h.HandleResetMPIN)
	})

	return r
}
