// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mewsorg/mews/internal/app/store/audit"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for sign-in events (password, OTP, MPIN, email codes).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for admin actions on members, admins and content.
	// Same values as Auth.
	Admin string
}

// Logger writes audit events to MongoDB and/or zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ClientIP extracts the client IP from the request, honoring the first
// X-Forwarded-For hop.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.Module != "" {
		fields = append(fields, zap.String("module", event.Module))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.TargetID != nil {
		fields = append(fields, zap.String("target_id", event.TargetID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event according to the category's setting. A nil
// Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}
	if setting == "off" {
		return
	}
	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func authEvent(r *http.Request, eventType string, who *primitive.ObjectID, ok bool, reason string, details map[string]string) audit.Event {
	return audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		ActorID:       who,
		IP:            ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       ok,
		FailureReason: reason,
		Details:       details,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in. method is password, otp or mpin.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, p *auth.Principal, method string) {
	if l == nil || p == nil {
		return
	}
	id := p.ID
	l.Log(ctx, authEvent(r, audit.EventLoginSuccess, &id, true, "", map[string]string{
		"method": method,
		"kind":   p.Kind,
		"role":   p.Role,
	}))
}

// LoginFailedUserNotFound logs a sign-in for an unknown login id or mobile.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attempted, method string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedUserNotFound, nil, false, "user not found", map[string]string{
		"attempted_login_id": attempted,
		"method":             method,
	}))
}

// LoginFailedWrongSecret logs a bad password, OTP or MPIN.
func (l *Logger) LoginFailedWrongSecret(ctx context.Context, r *http.Request, who primitive.ObjectID, method string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedWrongSecret, &who, false, "wrong "+method, map[string]string{
		"method": method,
	}))
}

// LoginFailedUserDisabled logs a sign-in by a deactivated admin.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, who primitive.ObjectID) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedUserDisabled, &who, false, "user disabled", nil))
}

// LoginFailedWrongRole logs a sign-in through the wrong role's portal.
func (l *Logger) LoginFailedWrongRole(ctx context.Context, r *http.Request, who primitive.ObjectID, role, wanted string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedWrongRole, &who, false, "role mismatch", map[string]string{
		"role":   role,
		"wanted": wanted,
	}))
}

// LoginFailedRateLimit logs a throttled attempt.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, key, limitType string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedRateLimit, nil, false, "rate limited", map[string]string{
		"key":        key,
		"limit_type": limitType,
	}))
}

// Logout logs a sign-out. p may be nil for an expired session.
func (l *Logger) Logout(ctx context.Context, r *http.Request, p *auth.Principal) {
	var who *primitive.ObjectID
	if p != nil {
		id := p.ID
		who = &id
	}
	l.Log(ctx, authEvent(r, audit.EventLogout, who, true, "", nil))
}

// PasswordChanged logs a password change by its owner.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, who primitive.ObjectID) {
	l.Log(ctx, authEvent(r, audit.EventPasswordChanged, &who, true, "", nil))
}

// TwoFactorToggled logs the new two-factor state.
func (l *Logger) TwoFactorToggled(ctx context.Context, r *http.Request, who primitive.ObjectID, enabled bool) {
	l.Log(ctx, authEvent(r, audit.EventTwoFactorToggled, &who, true, "", map[string]string{
		"enabled": strconv.FormatBool(enabled),
	}))
}

// OTPSent logs an OTP issued to a member's mobile.
func (l *Logger) OTPSent(ctx context.Context, r *http.Request, member primitive.ObjectID, purpose string) {
	l.Log(ctx, authEvent(r, audit.EventOTPSent, &member, true, "", map[string]string{"purpose": purpose}))
}

// OTPFailed logs a wrong or expired OTP.
func (l *Logger) OTPFailed(ctx context.Context, r *http.Request, member primitive.ObjectID, reason string) {
	l.Log(ctx, authEvent(r, audit.EventOTPFailed, &member, false, reason, nil))
}

// MPINCreated logs a member setting their MPIN.
func (l *Logger) MPINCreated(ctx context.Context, r *http.Request, member primitive.ObjectID) {
	l.Log(ctx, authEvent(r, audit.EventMPINCreated, &member, true, "", nil))
}

// MPINReset logs an MPIN reset through OTP.
func (l *Logger) MPINReset(ctx context.Context, r *http.Request, member primitive.ObjectID) {
	l.Log(ctx, authEvent(r, audit.EventMPINReset, &member, true, "", nil))
}

// MPINLocked logs an MPIN lockout after repeated failures.
func (l *Logger) MPINLocked(ctx context.Context, r *http.Request, member primitive.ObjectID, failures int) {
	l.Log(ctx, authEvent(r, audit.EventMPINLocked, &member, false, "too many attempts", map[string]string{
		"failures": strconv.Itoa(failures),
	}))
}

// VerificationCodeSent logs an email verification code being mailed.
func (l *Logger) VerificationCodeSent(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, authEvent(r, audit.EventVerificationCodeSent, nil, true, "", map[string]string{"email": email}))
}

// VerificationCodeFailed logs a rejected email verification attempt.
func (l *Logger) VerificationCodeFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.Log(ctx, authEvent(r, audit.EventVerificationCodeFailed, nil, false, reason, map[string]string{"email": email}))
}

// EmailVerified logs a successfully verified address.
func (l *Logger) EmailVerified(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, authEvent(r, audit.EventEmailVerified, nil, true, "", map[string]string{"email": email}))
}

// --- Admin Events ---

// Admin logs an admin action. module is one of the audit.Module*
// constants and action one of the audit.Action* constants.
func (l *Logger) Admin(ctx context.Context, r *http.Request, actor *auth.Principal, module, action string, target *primitive.ObjectID, summary string) {
	if l == nil {
		return
	}
	e := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: action,
		Module:    module,
		TargetID:  target,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
	if actor != nil {
		id := actor.ID
		e.ActorID = &id
		e.ActorRole = actor.Role
		e.LocationID = actor.AssignedLocation
	}
	if summary != "" {
		e.Details = map[string]string{"summary": summary}
	}
	l.Log(ctx, e)
}
