package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// Tree is a seeded state > district > mandal > village chain.
type Tree struct {
	State, District, Mandal, Village models.Location
}

// CreateLocation inserts a location under parent with ancestors filled.
func (f *Fixtures) CreateLocation(ctx context.Context, name, typ string, parent *models.Location) models.Location {
	f.t.Helper()
	now := time.Now().UTC()
	l := models.Location{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Type:      typ,
		Ancestors: []models.Ancestor{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if parent != nil {
		pid := parent.ID
		l.Parent = &pid
		l.Ancestors = append(append(l.Ancestors, parent.Ancestors...),
			models.Ancestor{LocationID: parent.ID, Name: parent.Name, Type: parent.Type})
	}
	if _, err := f.db.Collection("locations").InsertOne(ctx, l); err != nil {
		f.t.Fatalf("CreateLocation(%s): %v", name, err)
	}
	return l
}

// CreateTree seeds Telangana > Nalgonda > Miryalaguda > Alagadapa.
func (f *Fixtures) CreateTree(ctx context.Context) Tree {
	f.t.Helper()
	var tr Tree
	tr.State = f.CreateLocation(ctx, "Telangana", models.LocationState, nil)
	tr.District = f.CreateLocation(ctx, "Nalgonda", models.LocationDistrict, &tr.State)
	tr.Mandal = f.CreateLocation(ctx, "Miryalaguda", models.LocationMandal, &tr.District)
	tr.Village = f.CreateLocation(ctx, "Alagadapa", models.LocationVillage, &tr.Mandal)
	return tr
}

// Address returns a member address in the tree's village.
func (tr Tree) Address() models.Address {
	v, m, d := tr.Village.ID, tr.Mandal.ID, tr.District.ID
	return models.Address{Village: &v, Mandal: &m, District: &d}
}

// CreateMember inserts m with defaults for the bookkeeping fields.
func (f *Fixtures) CreateMember(ctx context.Context, m models.Member) models.Member {
	f.t.Helper()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.VerificationStatus == "" {
		m.VerificationStatus = models.MemberPending
	}
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	m.NameCI = text.Fold(m.FullName())
	m.MobileNumber = authutil.NormalizeMobile(m.MobileNumber)
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := f.db.Collection("members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("CreateMember(%s): %v", m.Name, err)
	}
	return m
}

// CreateAdmin inserts an active admin with the given password.
func (f *Fixtures) CreateAdmin(ctx context.Context, username, role, password string, loc *primitive.ObjectID) models.User {
	f.t.Helper()
	hash, err := authutil.HashPassword(password)
	if err != nil {
		f.t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	u := models.User{
		ID:               primitive.NewObjectID(),
		Username:         username,
		UsernameCI:       text.Fold(username),
		PasswordHash:     hash,
		Role:             role,
		AssignedLocation: loc,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("CreateAdmin(%s): %v", username, err)
	}
	return u
}
