package validators_test

import (
	"testing"
	"time"

	"github.com/mewsorg/mews/internal/app/system/validators"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames: %v", err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{"members", "users", "locations", "fundrequests", "donations", "notifications"} {
		if !have[want] {
			t.Errorf("collection %q missing", want)
		}
	}
}

func TestMembersValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	c := db.Collection("members")

	if _, err := c.InsertOne(ctx, bson.M{"name": "Ravi"}); err == nil {
		t.Error("expected missing verificationStatus to be rejected")
	}
	if _, err := c.InsertOne(ctx, bson.M{"name": "Ravi", "verificationStatus": "MAYBE"}); err == nil {
		t.Error("expected unknown status to be rejected")
	}
	if _, err := c.InsertOne(ctx, bson.M{"name": "Ravi", "verificationStatus": "PENDING", "age": 34}); err != nil {
		t.Errorf("valid member rejected: %v", err)
	}
}

func TestFundRequestsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	c := db.Collection("fundrequests")

	doc := bson.M{
		"purpose":        "Lottery",
		"amountRequired": 5000.0,
		"status":         "PENDING_APPROVAL",
		"requestedBy":    primitive.NewObjectID(),
		"createdAt":      time.Now(),
	}
	if _, err := c.InsertOne(ctx, doc); err == nil {
		t.Error("expected unknown purpose to be rejected")
	}
	doc["purpose"] = "Medical"
	if _, err := c.InsertOne(ctx, doc); err != nil {
		t.Errorf("valid fund request rejected: %v", err)
	}
}
