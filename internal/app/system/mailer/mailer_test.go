package mailer

import (
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSend_LogOnly(t *testing.T) {
	m := New(Config{}, zap.NewNop())
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Send(Email{To: "a@example.com", Subject: "hi"}))
	assert.ErrorIs(t, m.Send(Email{}), ErrNoRecipient)
}

func TestSend_SMTP(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", User: "u", Pass: "p", From: "noreply@example.com"}, zap.NewNop())

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	require.NoError(t, m.Send(BuildVerificationEmail(VerificationEmailData{Code: "123456", ExpiresIn: "5 minutes"}).withTo("ravi@example.com")))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"ravi@example.com"}, gotTo)
	body := string(gotMsg)
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, `"MEWS Notifications" <noreply@example.com>`)
}

func (e Email) withTo(to string) Email { e.To = to; return e }

func TestBuild_RejectsBadRecipient(t *testing.T) {
	m := New(Config{Host: "h", From: "x@example.com"}, zap.NewNop())
	_, err := m.build(Email{To: "not an address"}, time.Now())
	assert.Error(t, err)
}

func TestTemplates(t *testing.T) {
	w := BuildWelcomeEmail(WelcomeEmailData{Name: "Ravi", MewsID: "MEWS-2025-24-12-000001", MemberID: "abc", FrontendURL: "https://mews.example/"})
	assert.Contains(t, w.TextBody, "https://mews.example/dashboard/member/id-card/abc")
	assert.Contains(t, w.HTMLBody, "MEWS-2025-24-12-000001")

	p := BuildPromotionEmail(PromotionEmailData{Name: "Ravi", Role: "VILLAGE_ADMIN", LocationName: "Alagadapa"})
	assert.Contains(t, p.TextBody, "appointed as VILLAGE ADMIN for Alagadapa")

	s := BuildStatusEmail(StatusEmailData{Name: "Ravi", MewsID: "M1", Status: "APPROVED_VILLAGE"})
	assert.True(t, strings.HasSuffix(s.Subject, "APPROVED VILLAGE"))
	assert.NotContains(t, s.HTMLBody, "Notes:")

	v := BuildVerificationEmail(VerificationEmailData{Name: "<b>x</b>", Code: "1"})
	assert.NotContains(t, v.HTMLBody, "<b>x</b>", "names are escaped")
}
