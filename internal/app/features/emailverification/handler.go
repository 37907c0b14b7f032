// internal/app/features/emailverification/handler.go
//
// Package emailverification confirms ownership of an email address during
// registration by mailing a short-lived six-digit code.
package emailverification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/store/emailverify"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/mailer"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

type Handler struct {
	Store  *emailverify.Store
	Mailer *mailer.Mailer
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger

	// EchoCode returns the code in the send response. Never set in prod.
	EchoCode bool
}

func NewHandler(db *mongo.Database, m *mailer.Mailer, echo bool, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:    emailverify.New(db, emailverify.DefaultExpiry),
		Mailer:   m,
		ErrLog:   errLog,
		Log:      logger,
		EchoCode: echo,
	}
}

type sendInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sendResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"`
	Code      string `json:"code,omitempty"`
}

// Send handles POST /api/email-verification/send and /resend.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var in sendInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad verification body", err, "Email is required")
		return
	}
	if in.Email == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Email is required")
		return
	}
	if !authutil.ValidEmail(in.Email) {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid email format")
		return
	}
	email := emailverify.Normalize(in.Email)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	code, err := h.Store.Send(ctx, email)
	var cooldown *emailverify.CooldownError
	switch {
	case errors.As(err, &cooldown):
		jsonutil.Error(w, r, http.StatusTooManyRequests, fmt.Sprintf("Please wait %d seconds before requesting a new code", cooldown.Seconds()))
		return
	case errors.Is(err, emailverify.ErrTooManySends):
		jsonutil.Error(w, r, http.StatusTooManyRequests, "Too many verification requests. Please try again in 5 minutes.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "issue verification code failed", err, "")
		return
	}

	msg := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		Name:      in.Name,
		Code:      code,
		ExpiresIn: fmt.Sprintf("%d minutes", int(h.Store.Expiry().Minutes())),
	})
	msg.To = email
	if err := h.Mailer.Send(msg); err != nil {
		h.ErrLog.LogServerError(w, r, "send verification email failed", err,
			"Failed to send verification email. Please check your email address and try again.")
		return
	}
	h.Log.Info("verification code sent", zap.String("email", email))

	res := sendResult{
		Success:   true,
		Message:   "Verification code sent to your email",
		ExpiresIn: int(h.Store.Expiry().Seconds()),
	}
	if h.EchoCode {
		res.Code = code
	}
	jsonutil.OK(w, res)
}

type verifyInput struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyResult struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Email   string `json:"email"`
}

// Verify handles POST /api/email-verification/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var in verifyInput
	if err := jsonutil.Decode(r, &in); err != nil || in.Email == "" || in.Code == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Email and verification code are required")
		return
	}
	if !codePattern.MatchString(in.Code) {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid verification code format")
		return
	}
	email := emailverify.Normalize(in.Email)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := h.Store.Verify(ctx, email, in.Code)
	var invalid *emailverify.InvalidCodeError
	switch {
	case errors.Is(err, emailverify.ErrNotFound):
		jsonutil.Error(w, r, http.StatusNotFound, "No verification request found. Please request a new code.")
		return
	case errors.Is(err, emailverify.ErrExpired):
		jsonutil.Error(w, r, http.StatusBadRequest, "Verification code has expired. Please request a new code.")
		return
	case errors.Is(err, emailverify.ErrTooManyAttempts):
		jsonutil.Error(w, r, http.StatusBadRequest, "Maximum verification attempts exceeded. Please request a new code.")
		return
	case errors.As(err, &invalid):
		jsonutil.Error(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid verification code. %d attempt(s) remaining.", invalid.Remaining))
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "verify email code failed", err, "")
		return
	}

	h.Log.Info("email verified", zap.String("email", email))
	jsonutil.OK(w, verifyResult{Success: true, Message: "Email verified successfully", Email: email})
}

type checkResult struct {
	Verified bool   `json:"verified"`
	Email    string `json:"email"`
}

// Check handles POST /api/email-verification/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var in sendInput
	if err := jsonutil.Decode(r, &in); err != nil || in.Email == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Email is required")
		return
	}
	email := emailverify.Normalize(in.Email)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ok, err := h.Store.Check(ctx, email)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "check email verification failed", err, "")
		return
	}
	jsonutil.OK(w, checkResult{Verified: ok, Email: email})
}
