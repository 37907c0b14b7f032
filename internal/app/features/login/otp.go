package login

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/otp"
	"github.com/mewsorg/mews/internal/app/system/sms"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.uber.org/zap"
)

const (
	msgMemberNotFound = "Member not found with this mobile number"
	msgInvalidOTP     = "Invalid OTP"
	msgExpiredOTP     = "OTP has expired"
)

type otpRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
}

// HandleRequestOTP serves POST /api/auth/request-otp.
func (h *Handler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	h.sendOTP(w, r, "login")
}

// HandleForgotMPIN serves POST /api/auth/forgot-mpin. It issues the same
// code as request-otp; reset-mpin consumes it.
func (h *Handler) HandleForgotMPIN(w http.ResponseWriter, r *http.Request) {
	h.sendOTP(w, r, "forgot-mpin")
}

func (h *Handler) sendOTP(w http.ResponseWriter, r *http.Request, purpose string) {
	var req otpRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, purpose+": bad body", err, "Invalid request body")
		return
	}
	mobile := authutil.NormalizeMobile(req.Mobile)
	if mobile == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Mobile number is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.FindByMobile(ctx, mobile)
	if errors.Is(err, memberstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, mobile, "otp")
		jsonutil.Error(w, r, http.StatusNotFound, msgMemberNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, purpose+": member lookup failed", err, "")
		return
	}

	now := time.Now().UTC()
	if m.OTPLastSent != nil && now.Sub(*m.OTPLastSent) < h.Opts.OTPCooldown {
		jsonutil.Error(w, r, http.StatusTooManyRequests, "Please wait before requesting another OTP")
		return
	}

	code, err := otp.Generate()
	if err != nil {
		h.ErrLog.LogServerError(w, r, purpose+": generate failed", err, "")
		return
	}
	if err := h.Members.SetOTP(ctx, m.ID, otp.Hash(code), now.Add(h.Opts.OTPTTL)); err != nil {
		h.ErrLog.LogServerError(w, r, purpose+": store failed", err, "")
		return
	}
	if err := h.SMS.Send(ctx, sms.E164(mobile), sms.OTPMessage(code, h.Opts.OTPTTL)); err != nil {
		h.ErrLog.LogServerError(w, r, purpose+": sms send failed", err, "Failed to send OTP")
		return
	}
	h.AuditLog.OTPSent(ctx, r, m.ID, purpose)

	resp := map[string]any{"message": "OTP sent successfully"}
	if h.Opts.EchoOTP {
		resp["otp"] = code
	}
	jsonutil.OK(w, resp)
}

// checkOTP validates code against m's stored code and writes the 400 on
// failure.
func (h *Handler) checkOTP(w http.ResponseWriter, r *http.Request, m models.Member, code string) bool {
	if m.OTPHash == "" || !otp.Verify(strings.TrimSpace(code), m.OTPHash) {
		h.AuditLog.OTPFailed(r.Context(), r, m.ID, "invalid")
		jsonutil.Error(w, r, http.StatusBadRequest, msgInvalidOTP)
		return false
	}
	if m.OTPExpires == nil || time.Now().After(*m.OTPExpires) {
		h.AuditLog.OTPFailed(r.Context(), r, m.ID, "expired")
		jsonutil.Error(w, r, http.StatusBadRequest, msgExpiredOTP)
		return false
	}
	return true
}

// HandleVerifyOTP serves POST /api/auth/verify-otp.
func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "verify-otp: bad body", err, "Invalid request body")
		return
	}
	mobile := authutil.NormalizeMobile(req.Mobile)
	if mobile == "" || strings.TrimSpace(req.OTP) == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Mobile and OTP are required")
		return
	}
	if h.rateLimited(w, r, mobile) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.FindByMobile(ctx, mobile)
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgMemberNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "verify-otp: member lookup failed", err, "")
		return
	}
	if !h.checkOTP(w, r, m, req.OTP) {
		return
	}
	if err := h.Members.ClearOTP(ctx, m.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "verify-otp: clear failed", err, "")
		return
	}

	p, err := h.Principals.FetchPrincipal(ctx, m.ID, models.KindMember)
	if err != nil || p == nil {
		h.ErrLog.LogServerError(w, r, "verify-otp: principal fetch failed", err, "")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetAccount(mobile)
	}
	h.Log.Info("member signed in", zap.String("member_id", m.ID.Hex()), zap.String("method", "otp"))
	h.signIn(w, r, p, "otp")
}
