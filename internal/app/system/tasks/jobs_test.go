package tasks

import (
	"testing"
	"time"

	announcementstore "github.com/mewsorg/mews/internal/app/store/announcements"
	carouselstore "github.com/mewsorg/mews/internal/app/store/carousel"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	notificationstore "github.com/mewsorg/mews/internal/app/store/notifications"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.uber.org/zap"
)

func TestPublishDue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := &notify.Service{
		Notifications: notificationstore.New(db),
		Users:         userstore.New(db),
		Members:       memberstore.New(db),
		Locations:     locationstore.New(db),
		Log:           zap.NewNop(),
	}
	anns := announcementstore.New(db)

	sender, err := svc.Users.Create(ctx, models.User{Username: "root", Role: models.RoleSuperAdmin}, "password123")
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	m, err := svc.Members.Create(ctx, models.Member{Name: "Ravi"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	now := time.Now().UTC()
	past, future := now.Add(-time.Minute), now.Add(time.Hour)
	due, err := anns.Create(ctx, models.Announcement{Subject: "Due", Body: "x", Scope: models.ScopeWhole,
		TargetType: "state", Sender: sender.ID, Status: models.AnnouncementScheduled, ScheduledFor: &past})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	later, err := anns.Create(ctx, models.Announcement{Subject: "Later", Body: "x", Scope: models.ScopeWhole,
		TargetType: "state", Sender: sender.ID, Status: models.AnnouncementScheduled, ScheduledFor: &future})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := PublishDue(ctx, anns, svc, zap.NewNop(), now); err != nil {
		t.Fatalf("PublishDue: %v", err)
	}

	got, _ := anns.Get(ctx, due.ID)
	if got.Status != models.AnnouncementSent || got.SentAt == nil {
		t.Errorf("due announcement not sent: %+v", got)
	}
	if got, _ := anns.Get(ctx, later.ID); got.Status != models.AnnouncementScheduled {
		t.Errorf("future announcement published early")
	}
	ns, err := svc.Notifications.ListForRecipient(ctx, m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ns) != 1 || ns[0].Title != "Due" {
		t.Errorf("member notifications: %+v", ns)
	}

	// A second pass finds nothing left to do.
	if err := PublishDue(ctx, anns, svc, zap.NewNop(), now); err != nil {
		t.Fatalf("PublishDue again: %v", err)
	}
	if ns, _ := svc.Notifications.ListForRecipient(ctx, m.ID); len(ns) != 1 {
		t.Errorf("announcement delivered twice")
	}
}

func TestCarouselExpiryJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := carouselstore.New(db)
	past := time.Now().Add(-time.Hour)
	img, err := store.Create(ctx, models.CarouselImage{ImageURL: "a.png", IsActive: true, ExpiryDate: &past})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	job := CarouselExpiryJob(store, zap.NewNop())
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := store.Get(ctx, img.ID)
	if got.IsActive {
		t.Error("expired image still active")
	}
}
