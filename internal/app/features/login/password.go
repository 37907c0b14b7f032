package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.uber.org/zap"
)

const msgInvalidCredentials = "Invalid Credentials"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// HandleLogin serves POST /api/auth/login for admins and institutions.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "login: bad body", err, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Username and password are required")
		return
	}
	if h.rateLimited(w, r, req.Username) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, req.Username)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, req.Username, "password")
		jsonutil.Error(w, r, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: user lookup failed", err, "")
		return
	}
	if !authutil.CheckPassword(u.PasswordHash, req.Password) {
		h.AuditLog.LoginFailedWrongSecret(ctx, r, u.ID, "password")
		jsonutil.Error(w, r, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}
	if role := strings.ToUpper(strings.TrimSpace(req.Role)); role != "" && role != u.Role {
		h.AuditLog.LoginFailedWrongRole(ctx, r, u.ID, u.Role, role)
		jsonutil.Error(w, r, http.StatusUnauthorized, fmt.Sprintf("Unauthorized: You are not a %s", role))
		return
	}
	if !u.IsActive {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID)
		jsonutil.Error(w, r, http.StatusUnauthorized, "Your account has been deactivated")
		return
	}

	p, err := h.Principals.FetchPrincipal(ctx, u.ID, models.KindUser)
	if err != nil || p == nil {
		h.ErrLog.LogServerError(w, r, "login: principal fetch failed", err, "")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetAccount(req.Username)
	}
	h.Log.Info("admin signed in", zap.String("user_id", u.ID.Hex()), zap.String("role", u.Role))
	h.signIn(w, r, p, "password")
}

// HandleLogout serves POST /api/auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	if err := h.SessionMgr.Logout(w, r); err != nil {
		h.Log.Warn("logout: clear session failed", zap.Error(err))
	}
	h.AuditLog.Logout(r.Context(), r, p)
	jsonutil.Message(w, "Logged out successfully")
}

// ServeMe serves GET /api/auth/me. The principal was loaded from the
// database by the session middleware on this request.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	jsonutil.OK(w, p)
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// HandlePassword serves PUT /api/auth/password.
func (h *Handler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	if p.Kind != models.KindUser {
		jsonutil.Error(w, r, http.StatusBadRequest, "Password change is only available for admin accounts")
		return
	}
	var req passwordRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "password: bad body", err, "Invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Old and new passwords are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "password: load user failed", err, "")
		return
	}
	if !authutil.CheckPassword(u.PasswordHash, req.OldPassword) {
		jsonutil.Error(w, r, http.StatusUnauthorized, "Invalid old password")
		return
	}
	if err := authutil.ValidatePassword(req.NewPassword); err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Users.SetPassword(ctx, u.ID, req.NewPassword); err != nil {
		h.ErrLog.LogServerError(w, r, "password: save failed", err, "")
		return
	}
	h.AuditLog.PasswordChanged(ctx, r, u.ID)
	jsonutil.Message(w, "Password updated successfully")
}

// HandleTwoFactor serves PUT /api/auth/2fa.
func (h *Handler) HandleTwoFactor(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	if p.Kind != models.KindUser {
		jsonutil.Error(w, r, http.StatusBadRequest, "Two-factor authentication is only available for admin accounts")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	enabled, err := h.Users.ToggleTwoFactor(ctx, p.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "2fa: toggle failed", err, "")
		return
	}
	h.AuditLog.TwoFactorToggled(ctx, r, p.ID, enabled)
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	jsonutil.OK(w, map[string]any{
		"message": "Two-factor authentication " + state,
		"enabled": enabled,
	})
}
