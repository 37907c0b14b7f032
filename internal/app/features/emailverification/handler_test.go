package emailverification_test

import (
	"net/http"
	"testing"

	"github.com/mewsorg/mews/internal/app/features/emailverification"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/system/mailer"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) *emailverification.Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return emailverification.NewHandler(db, mailer.New(mailer.Config{}, logger), true, uierrors.NewErrorLogger(logger), logger)
}

func post(h http.HandlerFunc, body any) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	h(rec, testutil.NewJSONRequest("POST", "/", body))
	return rec
}

func TestSend_Validation(t *testing.T) {
	h := setup(t)
	post(h.Send, map[string]string{}).AssertStatus(t, http.StatusBadRequest)

	rec := post(h.Send, map[string]string{"email": "not-an-email"})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "Invalid email format")
}

func TestSendVerifyCheck(t *testing.T) {
	h := setup(t)

	rec := post(h.Send, map[string]string{"email": " Ravi@Example.com ", "name": "Ravi"})
	rec.AssertStatus(t, http.StatusOK)
	var sent struct {
		Success   bool   `json:"success"`
		ExpiresIn int    `json:"expiresIn"`
		Code      string `json:"code"`
	}
	rec.Decode(t, &sent)
	assert.True(t, sent.Success)
	assert.Equal(t, 300, sent.ExpiresIn)
	require.Len(t, sent.Code, 6)

	rec = post(h.Send, map[string]string{"email": "ravi@example.com"})
	rec.AssertStatus(t, http.StatusTooManyRequests)

	check := func() bool {
		rec := post(h.Check, map[string]string{"email": "RAVI@example.com"})
		rec.AssertStatus(t, http.StatusOK)
		var out struct {
			Verified bool   `json:"verified"`
			Email    string `json:"email"`
		}
		rec.Decode(t, &out)
		assert.Equal(t, "ravi@example.com", out.Email)
		return out.Verified
	}
	assert.False(t, check())

	post(h.Verify, map[string]string{"email": "ravi@example.com", "code": "12ab"}).AssertStatus(t, http.StatusBadRequest)

	rec = post(h.Verify, map[string]string{"email": "ravi@example.com", "code": "000000"})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "Invalid verification code. 2 attempt(s) remaining.")

	rec = post(h.Verify, map[string]string{"email": "ravi@example.com", "code": sent.Code})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertMessage(t, "Email verified successfully")
	assert.True(t, check())

	post(h.Verify, map[string]string{"email": "ravi@example.com", "code": sent.Code}).AssertStatus(t, http.StatusNotFound)
}

func TestVerify_UnknownEmail(t *testing.T) {
	h := setup(t)
	rec := post(h.Verify, map[string]string{"email": "nobody@example.com", "code": "123456"})
	rec.AssertStatus(t, http.StatusNotFound)
}
