package notifications_test

import (
	"net/http"
	"testing"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/features/notifications"
	notificationstore "github.com/mewsorg/mews/internal/app/store/notifications"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*notifications.Handler, *notificationstore.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return notifications.NewHandler(db, uierrors.NewErrorLogger(logger), logger), notificationstore.New(db)
}

func seed(t *testing.T, store *notificationstore.Store, recipient primitive.ObjectID, title string) models.Notification {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := store.Create(ctx, models.Notification{Recipient: recipient, Title: title, Message: title})
	require.NoError(t, err)
	return n
}

func TestList_OnlyOwn(t *testing.T) {
	h, store := setup(t)
	p := testutil.MemberPrincipal(models.Member{ID: primitive.NewObjectID(), Name: "Ravi"})
	seed(t, store, p.ID, "Welcome")
	seed(t, store, primitive.NewObjectID(), "Someone else")

	rec := testutil.NewRecorder()
	h.List(rec, testutil.NewAuthenticatedRequest("GET", "/", p))
	rec.AssertStatus(t, http.StatusOK)
	var list []models.Notification
	rec.Decode(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Welcome", list[0].Title)
}

func TestMarkRead(t *testing.T) {
	h, store := setup(t)
	p := testutil.AdminPrincipal(models.RoleVillageAdmin, nil)
	mine := seed(t, store, p.ID, "Registration")
	theirs := seed(t, store, primitive.NewObjectID(), "Other")

	call := func(id string) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		req := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("PUT", "/"+id+"/read", p), "id", id)
		h.MarkRead(rec, req)
		return rec
	}

	rec := call(mine.ID.Hex())
	rec.AssertStatus(t, http.StatusOK)
	var got models.Notification
	rec.Decode(t, &got)
	assert.True(t, got.IsRead)

	rec = call(theirs.ID.Hex())
	rec.AssertStatus(t, http.StatusUnauthorized)
	rec.AssertMessage(t, "Not authorized")

	call(primitive.NewObjectID().Hex()).AssertStatus(t, http.StatusNotFound)
	call("garbage").AssertStatus(t, http.StatusNotFound)
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	h, store := setup(t)
	p := testutil.AdminPrincipal(models.RoleMandalAdmin, nil)
	seed(t, store, p.ID, "One")
	seed(t, store, p.ID, "Two")

	unread := func() int64 {
		rec := testutil.NewRecorder()
		h.UnreadCount(rec, testutil.NewAuthenticatedRequest("GET", "/unread-count", p))
		rec.AssertStatus(t, http.StatusOK)
		var body struct {
			Unread int64 `json:"unread"`
		}
		rec.Decode(t, &body)
		return body.Unread
	}
	assert.EqualValues(t, 2, unread())

	rec := testutil.NewRecorder()
	h.MarkAllRead(rec, testutil.NewAuthenticatedRequest("PUT", "/read-all", p))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertMessage(t, "All notifications marked as read")
	assert.Zero(t, unread())
}

func TestDelete(t *testing.T) {
	h, store := setup(t)
	p := testutil.AdminPrincipal(models.RoleMandalAdmin, nil)
	mine := seed(t, store, p.ID, "Mine")
	theirs := seed(t, store, primitive.NewObjectID(), "Theirs")

	del := func(id primitive.ObjectID) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		req := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("DELETE", "/"+id.Hex(), p), "id", id.Hex())
		h.Delete(rec, req)
		return rec
	}

	del(theirs.ID).AssertStatus(t, http.StatusUnauthorized)
	rec := del(mine.ID)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertMessage(t, "Notification removed")
	del(mine.ID).AssertStatus(t, http.StatusNotFound)
}
