package login

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const msgMPINLocked = "Account locked due to too many failed attempts. Try again later."

type mpinRequest struct {
	Mobile string `json:"mobile"`
	MPIN   string `json:"mpin"`
	OTP    string `json:"otp"`
}

// saveMPIN hashes and stores mpin for member id.
func (h *Handler) saveMPIN(ctx context.Context, id primitive.ObjectID, mpin string) error {
	hash, err := authutil.HashPassword(mpin)
	if err != nil {
		return err
	}
	return h.Members.SetMPIN(ctx, id, hash)
}

// HandleCreateMPIN serves POST /api/auth/create-mpin for a signed-in member.
func (h *Handler) HandleCreateMPIN(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	var req mpinRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "create-mpin: bad body", err, "Invalid request body")
		return
	}
	if err := authutil.ValidateMPIN(req.MPIN); err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.saveMPIN(ctx, p.ID, req.MPIN); err != nil {
		h.ErrLog.LogServerError(w, r, "create-mpin: save failed", err, "")
		return
	}
	h.AuditLog.MPINCreated(ctx, r, p.ID)
	jsonutil.Message(w, "MPIN created successfully")
}

// HandleLoginMPIN serves POST /api/auth/login-mpin.
func (h *Handler) HandleLoginMPIN(w http.ResponseWriter, r *http.Request) {
	var req mpinRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "login-mpin: bad body", err, "Invalid request body")
		return
	}
	mobile := authutil.NormalizeMobile(req.Mobile)
	if mobile == "" || req.MPIN == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Mobile and MPIN are required")
		return
	}
	if h.rateLimited(w, r, mobile) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.FindByMobile(ctx, mobile)
	if errors.Is(err, memberstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, mobile, "mpin")
		jsonutil.Error(w, r, http.StatusNotFound, msgMemberNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login-mpin: member lookup failed", err, "")
		return
	}
	if !m.MPINCreated || m.MPINHash == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "MPIN not set. Please login with OTP and create an MPIN")
		return
	}
	now := time.Now().UTC()
	if m.MPINLockedUntil != nil && now.Before(*m.MPINLockedUntil) {
		jsonutil.Error(w, r, http.StatusLocked, msgMPINLocked)
		return
	}

	if !authutil.CheckPassword(m.MPINHash, req.MPIN) {
		h.AuditLog.LoginFailedWrongSecret(ctx, r, m.ID, "mpin")
		n, err := h.Members.RecordMPINFailure(ctx, m.ID, maxMPINAttempts, now.Add(mpinLockout))
		switch {
		case errors.Is(err, memberstore.ErrMPINLocked):
			h.AuditLog.MPINLocked(ctx, r, m.ID, n)
			jsonutil.Error(w, r, http.StatusLocked, msgMPINLocked)
		case err != nil:
			h.ErrLog.LogServerError(w, r, "login-mpin: record failure failed", err, "")
		default:
			jsonutil.Write(w, http.StatusUnauthorized, map[string]any{
				"message":           "Invalid MPIN",
				"attemptsRemaining": maxMPINAttempts - n,
			})
		}
		return
	}
	if err := h.Members.ResetMPINFailures(ctx, m.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "login-mpin: reset failures failed", err, "")
		return
	}

	p, err := h.Principals.FetchPrincipal(ctx, m.ID, models.KindMember)
	if err != nil || p == nil {
		h.ErrLog.LogServerError(w, r, "login-mpin: principal fetch failed", err, "")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetAccount(mobile)
	}
	h.signIn(w, r, p, "mpin")
}

// ServeCheckMPIN serves GET /api/auth/check-mpin for the signed-in member.
func (h *Handler) ServeCheckMPIN(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, ok := h.memberFor(ctx, w, r)
	if !ok {
		return
	}
	jsonutil.OK(w, map[string]bool{
		"mpinCreated":   m.MPINCreated,
		"isMpinEnabled": m.IsMPINEnabled,
	})
}

// HandleResetMPIN serves POST /api/auth/reset-mpin for the signed-in member.
// The OTP from forgot-mpin authorizes the change.
func (h *Handler) HandleResetMPIN(w http.ResponseWriter, r *http.Request) {
	var req mpinRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "reset-mpin: bad body", err, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.OTP) == "" || req.MPIN == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "OTP and MPIN are required")
		return
	}
	if err := authutil.ValidateMPIN(req.MPIN); err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, ok := h.memberFor(ctx, w, r)
	if !ok {
		return
	}
	if !h.checkOTP(w, r, m, req.OTP) {
		return
	}
	if err := h.saveMPIN(ctx, m.ID, req.MPIN); err != nil {
		h.ErrLog.LogServerError(w, r, "reset-mpin: save failed", err, "")
		return
	}
	if err := h.Members.ClearOTP(ctx, m.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "reset-mpin: clear otp failed", err, "")
		return
	}
	h.AuditLog.MPINReset(ctx, r, m.ID)
	jsonutil.Message(w, "MPIN reset successfully")
}

// memberFor loads the signed-in member acting on an MPIN endpoint.
func (h *Handler) memberFor(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Member, bool) {
	p, ok := auth.CurrentPrincipal(r)
	if !ok || p.Kind != models.KindMember {
		jsonutil.Error(w, r, http.StatusUnauthorized, auth.MsgNoToken)
		return models.Member{}, false
	}
	m, err := h.Members.Get(ctx, p.ID)
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgMemberNotFound)
		return models.Member{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "member lookup failed", err, "")
		return models.Member{}, false
	}
	return m, true
}
