package fundrequeststore_test

import (
	"errors"
	"testing"

	fundrequeststore "github.com/mewsorg/mews/internal/app/store/fundrequests"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSummarize(t *testing.T) {
	rows := []models.FundRequest{
		{Status: models.FundPendingApproval, AmountCollected: 100},
		{Status: models.FundActive, AmountCollected: 2000},
		{Status: models.FundCompleted, AmountCollected: 5000},
		{Status: models.FundRejected, AmountCollected: 999},
		{Status: models.FundDraft},
	}
	st := fundrequeststore.Summarize(rows)
	want := fundrequeststore.Stats{Active: 2, Approved: 2, TotalDisbursed: 7000, PendingReviews: 1, Total: 5}
	if st != want {
		t.Errorf("got %+v, want %+v", st, want)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := fundrequeststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	by := primitive.NewObjectID()
	if _, err := store.Create(ctx, models.FundRequest{Purpose: "Holiday", AmountRequired: 10, RequestedBy: by}); !errors.Is(err, fundrequeststore.ErrBadPurpose) {
		t.Errorf("purpose: %v", err)
	}
	if _, err := store.Create(ctx, models.FundRequest{Purpose: models.PurposeMedical, AmountRequired: 0, RequestedBy: by}); !errors.Is(err, fundrequeststore.ErrBadAmount) {
		t.Errorf("amount: %v", err)
	}
	fr, err := store.Create(ctx, models.FundRequest{Purpose: models.PurposeMedical, AmountRequired: 5000, RequestedBy: by, AmountCollected: 100})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if fr.Status != models.FundPendingApproval || fr.AmountCollected != 0 {
		t.Errorf("unexpected: %+v", fr)
	}
}

func TestAddCollected_CompletesAtTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := fundrequeststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fr, err := store.Create(ctx, models.FundRequest{
		Purpose: models.PurposeEducation, AmountRequired: 1000,
		RequestedBy: primitive.NewObjectID(), Status: models.FundActive,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.AddCollected(ctx, fr.ID, 600)
	if err != nil {
		t.Fatalf("AddCollected: %v", err)
	}
	if got.Status != models.FundActive || got.AmountCollected != 600 {
		t.Errorf("after 600: %+v", got)
	}
	got, err = store.AddCollected(ctx, fr.ID, 400)
	if err != nil {
		t.Fatalf("AddCollected: %v", err)
	}
	if got.Status != models.FundCompleted {
		t.Errorf("status at target: %q", got.Status)
	}

	stored, _ := store.Get(ctx, fr.ID)
	if stored.Status != models.FundCompleted {
		t.Errorf("stored status: %q", stored.Status)
	}

	sum, err := store.SumCollected(ctx, bson.M{})
	if err != nil || sum != 1000 {
		t.Errorf("SumCollected: %v %v", sum, err)
	}
	if _, err := store.AddCollected(ctx, primitive.NewObjectID(), 1); !errors.Is(err, fundrequeststore.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
}

func TestAddCollected_KeepsRejectedAndFrozen(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := fundrequeststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, status := range []string{models.FundRejected, models.FundFrozen} {
		fr, err := store.Create(ctx, models.FundRequest{
			Purpose: models.PurposeMedical, AmountRequired: 500,
			RequestedBy: primitive.NewObjectID(), Status: models.FundActive,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := store.Review(ctx, fr.ID, status, models.ApprovalEntry{Level: "SUPER_ADMIN"}); err != nil {
			t.Fatalf("Review %s: %v", status, err)
		}
		got, err := store.AddCollected(ctx, fr.ID, 500)
		if err != nil {
			t.Fatalf("AddCollected: %v", err)
		}
		if got.Status != status || got.AmountCollected != 500 {
			t.Errorf("%s: returned %+v", status, got)
		}
		stored, _ := store.Get(ctx, fr.ID)
		if stored.Status != status {
			t.Errorf("%s: stored status %q", status, stored.Status)
		}
	}
}

func TestStats_ByBeneficiary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := fundrequeststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := primitive.NewObjectID()
	other := primitive.NewObjectID()
	for _, b := range []primitive.ObjectID{me, me, other} {
		b := b
		if _, err := store.Create(ctx, models.FundRequest{Purpose: models.PurposeLegal, AmountRequired: 10, RequestedBy: b, Beneficiary: &b}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	d, err := store.Dashboard(ctx, bson.M{"beneficiary": me})
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Total != 2 || d.PendingReviews != 2 {
		t.Errorf("stats: %+v", d.Stats)
	}
	if len(d.Applications) != 2 {
		t.Fatalf("applications: got %d, want 2", len(d.Applications))
	}
	for _, fr := range d.Applications {
		if fr.Beneficiary == nil || *fr.Beneficiary != me {
			t.Errorf("application %s belongs to %v", fr.ID.Hex(), fr.Beneficiary)
		}
	}
}
