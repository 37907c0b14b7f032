package locationstore_test

import (
	"errors"
	"testing"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type tree struct {
	state, district, mandal, village models.Location
}

func seedTree(t *testing.T, store *locationstore.Store) tree {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var tr tree
	var err error
	if tr.state, err = store.Create(ctx, "Telangana", models.LocationState, nil, ""); err != nil {
		t.Fatalf("create state: %v", err)
	}
	if tr.district, err = store.Create(ctx, "Nalgonda", models.LocationDistrict, &tr.state.ID, ""); err != nil {
		t.Fatalf("create district: %v", err)
	}
	if tr.mandal, err = store.Create(ctx, "Miryalaguda", models.LocationMandal, &tr.district.ID, ""); err != nil {
		t.Fatalf("create mandal: %v", err)
	}
	if tr.village, err = store.Create(ctx, "Alagadapa", models.LocationVillage, &tr.mandal.ID, "508207"); err != nil {
		t.Fatalf("create village: %v", err)
	}
	return tr
}

func TestCreate_Ancestors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)

	if len(tr.village.Ancestors) != 3 {
		t.Fatalf("village ancestors: got %d, want 3", len(tr.village.Ancestors))
	}
	if tr.village.Ancestors[0].LocationID != tr.state.ID || tr.village.Ancestors[2].LocationID != tr.mandal.ID {
		t.Errorf("ancestors out of order: %+v", tr.village.Ancestors)
	}
	if !tr.village.HasAncestor(tr.district.ID) {
		t.Error("village should have the district as an ancestor")
	}
	if len(tr.state.Ancestors) != 0 {
		t.Errorf("state ancestors: got %d, want 0", len(tr.state.Ancestors))
	}
}

func TestCreate_DuplicateUnderParent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, "ALAGADAPA", models.LocationVillage, &tr.mandal.ID, "")
	if !errors.Is(err, locationstore.ErrDuplicate) {
		t.Errorf("got %v, want ErrDuplicate", err)
	}

	// Same name under a different parent is fine.
	other, err := store.Create(ctx, "Other Mandal", models.LocationMandal, &tr.district.ID, "")
	if err != nil {
		t.Fatalf("create mandal: %v", err)
	}
	if _, err := store.Create(ctx, "Alagadapa", models.LocationVillage, &other.ID, ""); err != nil {
		t.Errorf("same name under another mandal: %v", err)
	}
}

func TestCreate_BadType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, "X", "COUNTRY", nil, ""); !errors.Is(err, locationstore.ErrBadType) {
		t.Errorf("got %v, want ErrBadType", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Get(ctx, primitive.NewObjectID()); !errors.Is(err, locationstore.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	states, err := store.List(ctx, "", nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 1 || states[0].ID != tr.state.ID {
		t.Errorf("default list should be the states, got %+v", states)
	}

	if _, err := store.Create(ctx, "Devarakonda", models.LocationMandal, &tr.district.ID, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	mandals, err := store.List(ctx, models.LocationMandal, &tr.district.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mandals) != 2 || mandals[0].Name != "Devarakonda" {
		t.Errorf("mandals not sorted by name: %+v", mandals)
	}
}

func TestFindByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	got, err := store.FindByName(ctx, "  alagadapa ", models.LocationVillage)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if got.ID != tr.village.ID {
		t.Errorf("got %v, want %v", got.ID, tr.village.ID)
	}
	if _, err := store.FindByName(ctx, "alagadapa", models.LocationMandal); !errors.Is(err, locationstore.ErrNotFound) {
		t.Errorf("wrong type should miss, got %v", err)
	}
}

func TestSameNameSiblings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	twin, err := store.Create(ctx, "Alagadapa (East)", models.LocationVillage, &tr.mandal.ID, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, "Nidamanur", models.LocationVillage, &tr.mandal.ID, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	sibs, err := store.SameNameSiblings(ctx, tr.village)
	if err != nil {
		t.Fatalf("SameNameSiblings: %v", err)
	}
	ids := map[primitive.ObjectID]bool{}
	for _, s := range sibs {
		ids[s.ID] = true
	}
	if len(sibs) != 2 || !ids[tr.village.ID] || !ids[twin.ID] {
		t.Errorf("unexpected siblings: %+v", sibs)
	}
}

func TestDescendants(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	all, err := store.Descendants(ctx, tr.state.ID, 0)
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("descendants of state: got %d, want 3", len(all))
	}

	one, err := store.Descendants(ctx, tr.state.ID, 1)
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if len(one) != 1 || one[0].ID != tr.district.ID {
		t.Errorf("depth 1: %+v", one)
	}
}

func TestRebuildAncestors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Corrupt the village's path.
	if _, err := db.Collection("locations").UpdateOne(ctx,
		bson.M{"_id": tr.village.ID},
		bson.M{"$set": bson.M{"ancestors": bson.A{}}}); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	changed, err := store.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed: got %d, want 1", changed)
	}
	v, err := store.Get(ctx, tr.village.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v.Ancestors) != 3 {
		t.Errorf("ancestors after rebuild: %+v", v.Ancestors)
	}

	again, err := store.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if again != 0 {
		t.Errorf("second rebuild changed %d", again)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := locationstore.New(db)
	tr := seedTree(t, store)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	l, created, err := store.Upsert(ctx, "Alagadapa", models.LocationVillage, &tr.mandal.ID, "508208")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if created || l.ID != tr.village.ID {
		t.Errorf("expected existing village, created=%v id=%v", created, l.ID)
	}
	if l.Pincode != "508208" {
		t.Errorf("pincode not updated: %q", l.Pincode)
	}
}
