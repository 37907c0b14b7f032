package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminPrincipal returns an admin principal with role assigned to loc.
func AdminPrincipal(role string, loc *primitive.ObjectID) *auth.Principal {
	return &auth.Principal{
		ID:               primitive.NewObjectID(),
		Kind:             models.KindUser,
		Name:             "Test " + role,
		Username:         strings.ToLower(role),
		Role:             role,
		AssignedLocation: loc,
	}
}

// SuperAdmin returns a super-admin principal.
func SuperAdmin() *auth.Principal {
	return AdminPrincipal(models.RoleSuperAdmin, nil)
}

// MemberPrincipal returns the principal a member signs in as.
func MemberPrincipal(m models.Member) *auth.Principal {
	id := m.ID
	return &auth.Principal{
		ID:       m.ID,
		Kind:     models.KindMember,
		Name:     m.FullName(),
		Mobile:   m.MobileNumber,
		Role:     models.RoleMember,
		MemberID: &id,
	}
}

// WithUser adds p to the request context, bypassing the session middleware.
func WithUser(r *http.Request, p *auth.Principal) *http.Request {
	return auth.WithTestPrincipal(r, p)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates a request whose body is v encoded as JSON.
func NewJSONRequest(method, target string, v any) *http.Request {
	var body io.Reader = http.NoBody
	if v != nil {
		b, _ := json.Marshal(v)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates a request acting as p.
func NewAuthenticatedRequest(method, target string, p *auth.Principal) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), p)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// AssertMessage checks the {"message": ...} body.
func (r *ResponseRecorder) AssertMessage(t interface{ Errorf(string, ...any) }, expected string) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body.Bytes(), &body); err != nil {
		t.Errorf("decode message: %v (body %s)", err, r.Body.String())
		return
	}
	if body.Message != expected {
		t.Errorf("message: got %q, want %q", body.Message, expected)
	}
}

// Decode unmarshals the body into v.
func (r *ResponseRecorder) Decode(t interface {
	Fatalf(string, ...any)
}, v any) {
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, r.Body.String())
	}
}
