package institutionstore_test

import (
	"errors"
	"testing"

	institutionstore "github.com/mewsorg/mews/internal/app/store/institutions"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := institutionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Institution{Name: "Care Hospital"}); !errors.Is(err, institutionstore.ErrInvalid) {
		t.Errorf("missing fields: got %v", err)
	}
	inst, err := store.Create(ctx, models.Institution{
		Type:               "Hospital",
		Name:               "Care Hospital",
		MobileNumber:       "9000000001",
		FullAddress:        "Main Road, Miryalaguda, Nalgonda",
		VerificationStatus: models.InstitutionApproved,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.VerificationStatus != models.InstitutionPending {
		t.Errorf("status must start PENDING, got %q", inst.VerificationStatus)
	}
}

func TestList_AddressScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := institutionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, addr := range []string{"Miryalaguda, NALGONDA", "Kukatpally, Hyderabad", "Devarakonda, Nalgonda"} {
		if _, err := store.Create(ctx, models.Institution{Type: "School", Name: addr, MobileNumber: "9", FullAddress: addr}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := store.List(ctx, institutionstore.ListFilter{AddressContains: "nalgonda"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("nalgonda: got %d, want 2", len(got))
	}
	all, err := store.List(ctx, institutionstore.ListFilter{})
	if err != nil || len(all) != 3 {
		t.Errorf("all: %d %v", len(all), err)
	}
	n, err := store.CountAll(ctx, "hyderabad")
	if err != nil || n != 1 {
		t.Errorf("CountAll: %d %v", n, err)
	}
	if none, _ := store.List(ctx, institutionstore.ListFilter{AddressContains: ".*"}); len(none) != 0 {
		t.Errorf("metacharacters must be literal, got %d", len(none))
	}
}

func TestUpdateDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := institutionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	inst, err := store.Create(ctx, models.Institution{Type: "Shop", Name: "Kirana", MobileNumber: "9"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.Update(ctx, inst.ID, bson.M{"verificationStatus": models.InstitutionApproved})
	if err != nil || got.VerificationStatus != models.InstitutionApproved {
		t.Fatalf("Update: %v %+v", err, got)
	}
	if _, err := store.Update(ctx, primitive.NewObjectID(), bson.M{"name": "x"}); !errors.Is(err, institutionstore.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
	if err := store.Delete(ctx, inst.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, inst.ID); !errors.Is(err, institutionstore.ErrNotFound) {
		t.Errorf("after delete: %v", err)
	}
}
