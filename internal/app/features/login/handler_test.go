package login_test

import (
	"net/http"
	"testing"
	"time"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/features/login"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/otp"
	"github.com/mewsorg/mews/internal/app/system/sms"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*login.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	tokens, err := auth.NewTokenIssuer("test-jwt-secret-that-is-long-enough-1234", 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "jwt", "", 24*time.Hour, false, tokens, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := login.NewHandler(db, sm, nil, sms.Nop{}, nil, uierrors.NewErrorLogger(logger),
		login.Options{EchoOTP: true}, logger)
	return h, testutil.NewFixtures(t, db)
}

func hasCookie(rec *testutil.ResponseRecorder, name string) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return true
		}
	}
	return false
}

func TestHandleLogin_Success(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	tr := fx.CreateTree(ctx)
	fx.CreateAdmin(ctx, "Village.Admin", models.RoleVillageAdmin, "secret-pass", &tr.Village.ID)

	rec := testutil.NewRecorder()
	h.HandleLogin(rec, testutil.NewJSONRequest("POST", "/login", map[string]string{
		"username": "village.admin",
		"password": "secret-pass",
	}))

	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Role         string `json:"role"`
		LocationName string `json:"locationName"`
		Token        string `json:"token"`
	}
	rec.Decode(t, &body)
	if body.Role != models.RoleVillageAdmin {
		t.Errorf("role: got %q", body.Role)
	}
	if body.LocationName != "Alagadapa" {
		t.Errorf("locationName: got %q, want Alagadapa", body.LocationName)
	}
	if body.Token == "" {
		t.Error("expected a token in the response")
	}
	if !hasCookie(rec, "jwt") {
		t.Error("expected the jwt cookie to be set")
	}
}

func TestHandleLogin_Failures(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateAdmin(ctx, "mandal", models.RoleMandalAdmin, "secret-pass", nil)
	if _, err := fx.DB().Collection("users").UpdateOne(ctx, bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{"isActive": false}}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	fx.CreateAdmin(ctx, "district", models.RoleDistrictAdmin, "secret-pass", nil)

	tests := []struct {
		name    string
		body    map[string]string
		status  int
		message string
	}{
		{"missing fields", map[string]string{"username": "district"}, http.StatusBadRequest, "Username and password are required"},
		{"unknown user", map[string]string{"username": "nobody", "password": "x"}, http.StatusUnauthorized, "Invalid Credentials"},
		{"wrong password", map[string]string{"username": "district", "password": "nope"}, http.StatusUnauthorized, "Invalid Credentials"},
		{"wrong role", map[string]string{"username": "district", "password": "secret-pass", "role": "SUPER_ADMIN"}, http.StatusUnauthorized, "Unauthorized: You are not a SUPER_ADMIN"},
		{"inactive", map[string]string{"username": "mandal", "password": "secret-pass"}, http.StatusUnauthorized, "Your account has been deactivated"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.HandleLogin(rec, testutil.NewJSONRequest("POST", "/login", tc.body))
			rec.AssertStatus(t, tc.status)
			rec.AssertMessage(t, tc.message)
		})
	}
}

func TestOTPFlow(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	tr := fx.CreateTree(ctx)
	m := fx.CreateMember(ctx, models.Member{Name: "Ravi", Surname: "Kumar", MobileNumber: "9876543210", Address: tr.Address()})

	rec := testutil.NewRecorder()
	h.HandleRequestOTP(rec, testutil.NewJSONRequest("POST", "/request-otp", map[string]string{"mobile": "9876543210"}))
	rec.AssertStatus(t, http.StatusOK)
	var sent struct {
		OTP string `json:"otp"`
	}
	rec.Decode(t, &sent)
	if !otp.WellFormed(sent.OTP) {
		t.Fatalf("echoed otp %q is not a 6-digit code", sent.OTP)
	}

	// A second request inside the cooldown is refused.
	rec = testutil.NewRecorder()
	h.HandleRequestOTP(rec, testutil.NewJSONRequest("POST", "/request-otp", map[string]string{"mobile": "9876543210"}))
	rec.AssertStatus(t, http.StatusTooManyRequests)

	rec = testutil.NewRecorder()
	h.HandleVerifyOTP(rec, testutil.NewJSONRequest("POST", "/verify-otp", map[string]string{"mobile": "9876543210", "otp": "000000"}))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "Invalid OTP")

	rec = testutil.NewRecorder()
	h.HandleVerifyOTP(rec, testutil.NewJSONRequest("POST", "/verify-otp", map[string]string{"mobile": "9876543210", "otp": sent.OTP}))
	rec.AssertStatus(t, http.StatusOK)
	var p struct {
		ID   string `json:"_id"`
		Role string `json:"role"`
		Kind string `json:"kind"`
	}
	rec.Decode(t, &p)
	if p.ID != m.ID.Hex() || p.Role != models.RoleMember || p.Kind != models.KindMember {
		t.Errorf("unexpected principal: %+v", p)
	}

	got, err := h.Members.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OTPHash != "" || !got.IsPhoneVerified {
		t.Errorf("otp not cleared or phone not verified: hash=%q verified=%v", got.OTPHash, got.IsPhoneVerified)
	}
}

func TestVerifyOTP_Expired(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := fx.CreateMember(ctx, models.Member{Name: "Sita", MobileNumber: "9000000001"})
	if err := h.Members.SetOTP(ctx, m.ID, otp.Hash("123456"), time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetOTP: %v", err)
	}

	rec := testutil.NewRecorder()
	h.HandleVerifyOTP(rec, testutil.NewJSONRequest("POST", "/verify-otp", map[string]string{"mobile": "9000000001", "otp": "123456"}))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "OTP has expired")
}

func TestRequestOTP_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.HandleRequestOTP(rec, testutil.NewJSONRequest("POST", "/request-otp", map[string]string{}))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = testutil.NewRecorder()
	h.HandleRequestOTP(rec, testutil.NewJSONRequest("POST", "/request-otp", map[string]string{"mobile": "9111111111"}))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestMPINFlow(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := fx.CreateMember(ctx, models.Member{Name: "Lakshmi", MobileNumber: "9222222222"})

	rec := testutil.NewRecorder()
	req := testutil.WithUser(testutil.NewJSONRequest("POST", "/create-mpin", map[string]string{"mpin": "12a4"}), testutil.MemberPrincipal(m))
	h.HandleCreateMPIN(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = testutil.NewRecorder()
	req = testutil.WithUser(testutil.NewJSONRequest("POST", "/create-mpin", map[string]string{"mpin": "4321"}), testutil.MemberPrincipal(m))
	h.HandleCreateMPIN(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	h.ServeCheckMPIN(rec, testutil.NewAuthenticatedRequest("GET", "/check-mpin", testutil.MemberPrincipal(m)))
	rec.AssertStatus(t, http.StatusOK)
	var check struct {
		Created bool `json:"mpinCreated"`
		Enabled bool `json:"isMpinEnabled"`
	}
	rec.Decode(t, &check)
	if !check.Created || !check.Enabled {
		t.Errorf("check-mpin: %+v", check)
	}

	rec = testutil.NewRecorder()
	h.HandleLoginMPIN(rec, testutil.NewJSONRequest("POST", "/login-mpin", map[string]string{"mobile": "9222222222", "mpin": "4321"}))
	rec.AssertStatus(t, http.StatusOK)
}

func TestLoginMPIN_LocksAfterFailures(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := fx.CreateMember(ctx, models.Member{Name: "Venu", MobileNumber: "9333333333"})

	rec := testutil.NewRecorder()
	h.HandleCreateMPIN(rec, testutil.WithUser(
		testutil.NewJSONRequest("POST", "/create-mpin", map[string]string{"mpin": "9999"}), testutil.MemberPrincipal(m)))
	rec.AssertStatus(t, http.StatusOK)

	for i := 1; i <= 4; i++ {
		rec = testutil.NewRecorder()
		h.HandleLoginMPIN(rec, testutil.NewJSONRequest("POST", "/login-mpin", map[string]string{"mobile": "9333333333", "mpin": "0000"}))
		rec.AssertStatus(t, http.StatusUnauthorized)
	}
	rec = testutil.NewRecorder()
	h.HandleLoginMPIN(rec, testutil.NewJSONRequest("POST", "/login-mpin", map[string]string{"mobile": "9333333333", "mpin": "0000"}))
	rec.AssertStatus(t, http.StatusLocked)

	// Even the right MPIN is refused while locked.
	rec = testutil.NewRecorder()
	h.HandleLoginMPIN(rec, testutil.NewJSONRequest("POST", "/login-mpin", map[string]string{"mobile": "9333333333", "mpin": "9999"}))
	rec.AssertStatus(t, http.StatusLocked)
}

func TestResetMPIN(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := fx.CreateMember(ctx, models.Member{Name: "Padma", MobileNumber: "9444444444"})

	rec := testutil.NewRecorder()
	h.HandleForgotMPIN(rec, testutil.NewJSONRequest("POST", "/forgot-mpin", map[string]string{"mobile": "9444444444"}))
	rec.AssertStatus(t, http.StatusOK)
	var sent struct {
		OTP string `json:"otp"`
	}
	rec.Decode(t, &sent)

	rec = testutil.NewRecorder()
	h.HandleResetMPIN(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/reset-mpin", map[string]string{
		"otp": sent.OTP, "mpin": "2468",
	}), testutil.MemberPrincipal(m)))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	h.HandleLoginMPIN(rec, testutil.NewJSONRequest("POST", "/login-mpin", map[string]string{"mobile": "9444444444", "mpin": "2468"}))
	rec.AssertStatus(t, http.StatusOK)
}

func TestLoginMPIN_AcceptsFormattedMobile(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := fx.CreateMember(ctx, models.Member{Name: "Anitha", MobileNumber: "9666666666"})

	rec := testutil.NewRecorder()
	h.HandleCreateMPIN(rec, testutil.WithUser(
		testutil.NewJSONRequest("POST", "/create-mpin", map[string]string{"mpin": "8642"}), testutil.MemberPrincipal(m)))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	h.HandleLoginMPIN(rec, testutil.NewJSONRequest("POST", "/login-mpin", map[string]string{"mobile": "+91 96666 66666", "mpin": "8642"}))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	h.HandleRequestOTP(rec, testutil.NewJSONRequest("POST", "/request-otp", map[string]string{"mobile": "+91-9666666666"}))
	rec.AssertStatus(t, http.StatusOK)
}

func TestMPINRoutes_RequireMemberSession(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateMember(ctx, models.Member{Name: "Sarala", MobileNumber: "9555555555"})
	router := login.Routes(h, h.SessionMgr)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest("GET", "/check-mpin?mobile=9555555555"))
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", "/reset-mpin", map[string]string{
		"mobile": "9555555555", "otp": "123456", "mpin": "1357",
	}))
	rec.AssertStatus(t, http.StatusUnauthorized)

	// An admin session is not a member session.
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/check-mpin", testutil.SuperAdmin()))
	rec.AssertStatus(t, http.StatusForbidden)

	// forgot-mpin stays public so a signed-out member can get an OTP.
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest("POST", "/forgot-mpin", map[string]string{"mobile": "9555555555"}))
	rec.AssertStatus(t, http.StatusOK)
}

func TestHandlePassword(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateAdmin(ctx, "state", models.RoleStateAdmin, "old-password", nil)
	p := testutil.AdminPrincipal(models.RoleStateAdmin, nil)
	p.ID = u.ID

	rec := testutil.NewRecorder()
	h.HandlePassword(rec, testutil.WithUser(testutil.NewJSONRequest("PUT", "/password",
		map[string]string{"oldPassword": "wrong", "newPassword": "new-password"}), p))
	rec.AssertStatus(t, http.StatusUnauthorized)
	rec.AssertMessage(t, "Invalid old password")

	rec = testutil.NewRecorder()
	h.HandlePassword(rec, testutil.WithUser(testutil.NewJSONRequest("PUT", "/password",
		map[string]string{"oldPassword": "old-password", "newPassword": "short"}), p))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = testutil.NewRecorder()
	h.HandlePassword(rec, testutil.WithUser(testutil.NewJSONRequest("PUT", "/password",
		map[string]string{"oldPassword": "old-password", "newPassword": "new-password"}), p))
	rec.AssertStatus(t, http.StatusOK)
}

func TestHandleTwoFactor_Toggles(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateAdmin(ctx, "super", models.RoleSuperAdmin, "password1", nil)
	p := testutil.SuperAdmin()
	p.ID = u.ID

	for _, want := range []bool{true, false} {
		rec := testutil.NewRecorder()
		h.HandleTwoFactor(rec, testutil.NewAuthenticatedRequest("PUT", "/2fa", p))
		rec.AssertStatus(t, http.StatusOK)
		var body struct {
			Enabled bool `json:"enabled"`
		}
		rec.Decode(t, &body)
		if body.Enabled != want {
			t.Errorf("enabled: got %v, want %v", body.Enabled, want)
		}
	}
}

func TestHandleLogout(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := testutil.NewRecorder()
	h.HandleLogout(rec, testutil.NewRequest("POST", "/logout"))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertMessage(t, "Logged out successfully")
}
