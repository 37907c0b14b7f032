package announcementstore_test

import (
	"testing"
	"time"

	announcementstore "github.com/mewsorg/mews/internal/app/store/announcements"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestScheduledLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := announcementstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sender := primitive.NewObjectID()
	sent, err := store.Create(ctx, models.Announcement{Subject: "Now", Body: "b", Sender: sender})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sent.Status != models.AnnouncementSent || sent.SentAt == nil {
		t.Errorf("immediate announcement: %+v", sent)
	}

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	due, err := store.Create(ctx, models.Announcement{Subject: "Due", Status: models.AnnouncementScheduled, ScheduledFor: &past, Sender: sender})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, models.Announcement{Subject: "Later", Status: models.AnnouncementScheduled, ScheduledFor: &future, Sender: sender}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := store.DueScheduled(ctx, time.Now())
	if err != nil {
		t.Fatalf("DueScheduled: %v", err)
	}
	if len(list) != 1 || list[0].ID != due.ID {
		t.Fatalf("due: %+v", list)
	}

	ok, err := store.MarkSent(ctx, due.ID, time.Now())
	if err != nil || !ok {
		t.Fatalf("MarkSent: %v %v", ok, err)
	}
	again, err := store.MarkSent(ctx, due.ID, time.Now())
	if err != nil || again {
		t.Errorf("second MarkSent should be a no-op: %v %v", again, err)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("List: %d %v", len(all), err)
	}
	if all[0].Subject != "Later" {
		t.Errorf("not newest first: %q", all[0].Subject)
	}
}
