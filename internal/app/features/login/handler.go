// internal/app/features/login/handler.go
package login

// Terminology: login identifiers
//   - Admins and institutions sign in with a username (or email) and password.
//   - Members sign in with their mobile number and either a one-time code
//     (OTP) or a 4-6 digit MPIN.

import (
	"net/http"
	"time"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/ratelimit"
	"github.com/mewsorg/mews/internal/app/system/sms"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	// DefaultOTPTTL is how long a login code stays valid.
	DefaultOTPTTL = 10 * time.Minute
	// DefaultOTPCooldown is the minimum gap between two codes to one member.
	DefaultOTPCooldown = 60 * time.Second

	maxMPINAttempts = 5
	mpinLockout     = 15 * time.Minute
)

// Options tunes the member login flows.
type Options struct {
	OTPTTL      time.Duration
	OTPCooldown time.Duration
	// EchoOTP returns the generated code in the response body. Never set in prod.
	EchoOTP bool
}

// Handler serves /api/auth.
type Handler struct {
	Users      *userstore.Store
	Members    *memberstore.Store
	Principals auth.PrincipalFetcher
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	SMS        sms.Sender
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Opts       Options
	Log        *zap.Logger
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	limiter *ratelimit.LoginLimiter,
	sender sms.Sender,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	opts Options,
	logger *zap.Logger,
) *Handler {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = DefaultOTPTTL
	}
	if opts.OTPCooldown <= 0 {
		opts.OTPCooldown = DefaultOTPCooldown
	}
	return &Handler{
		Users:      userstore.New(db),
		Members:    memberstore.New(db),
		Principals: userstore.NewFetcher(db),
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		SMS:        sender,
		AuditLog:   audit,
		ErrLog:     errLog,
		Opts:       opts,
		Log:        logger,
	}
}

// loginResponse is the principal plus the bearer token for clients that
// do not keep cookies.
type loginResponse struct {
	*auth.Principal
	Token string `json:"token"`
}

// signIn loads the principal fresh, sets the session cookie and writes the
// login response. method names the credential for the audit trail.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, p *auth.Principal, method string) {
	token, err := h.SessionMgr.Login(w, r, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "session login failed", err, "")
		return
	}
	h.AuditLog.LoginSuccess(r.Context(), r, p, method)
	jsonutil.OK(w, loginResponse{Principal: p, Token: token})
}

// rateLimited applies the login limiter, writing 429 when it trips.
func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, account string) bool {
	if h.Limiter == nil {
		return false
	}
	if ok, msg := h.Limiter.Check(r, account); !ok {
		h.AuditLog.LoginFailedRateLimit(r.Context(), r, account, "login")
		jsonutil.Error(w, r, http.StatusTooManyRequests, msg)
		return true
	}
	return false
}
