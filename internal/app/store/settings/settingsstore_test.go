package settingsstore_test

import (
	"testing"

	settingsstore "github.com/mewsorg/mews/internal/app/store/settings"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Get_NoSettings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := settingsstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	loc := primitive.NewObjectID()
	vs, err := store.Get(ctx, loc)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if vs.Location != loc {
		t.Errorf("Location: got %v, want %v", vs.Location, loc)
	}
	if !vs.IsEmpty() {
		t.Errorf("expected empty settings, got %+v", vs)
	}
}

func TestStore_Save_Upserts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := settingsstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	loc := primitive.NewObjectID()
	admin := primitive.NewObjectID()

	if err := store.Save(ctx, loc, models.VillageSettings{
		ContactPhone: "9876543210",
		MeetingDay:   "Sunday",
		UpdatedByID:  &admin,
	}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := store.Save(ctx, loc, models.VillageSettings{
		ContactPhone:  "9876543210",
		OfficeAddress: "Panchayat office",
		MeetingDay:    "Monday",
	}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := store.Get(ctx, loc)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.MeetingDay != "Monday" || got.OfficeAddress != "Panchayat office" {
		t.Errorf("unexpected settings: %+v", got)
	}
	if got.UpdatedAt == nil {
		t.Error("UpdatedAt not set")
	}

	n, err := db.Collection("village_settings").CountDocuments(ctx, bson.M{"location": loc})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("documents for location: got %d, want 1", n)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := settingsstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	loc := primitive.NewObjectID()
	if err := store.Save(ctx, loc, models.VillageSettings{Notes: "x"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, loc); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := store.Get(ctx, loc)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("settings survived delete: %+v", got)
	}
}
