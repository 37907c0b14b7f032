package announcements_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mewsorg/mews/internal/app/features/announcements"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	notificationstore "github.com/mewsorg/mews/internal/app/store/notifications"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/locationcache"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

type env struct {
	h  *announcements.Handler
	fx *testutil.Fixtures
	tr testutil.Tree
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	files, err := filestore.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	locs := locationcache.New(locationstore.New(db), time.Minute)
	notifier := &notify.Service{
		Notifications: notificationstore.New(db),
		Users:         userstore.New(db),
		Members:       memberstore.New(db),
		Locations:     locs,
		Log:           logger,
	}
	signer := &filestore.Signer{Store: files, Log: logger}
	h := announcements.NewHandler(db, files, signer, notifier, nil, uierrors.NewErrorLogger(logger), logger)

	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	return env{h: h, fx: fx, tr: fx.CreateTree(ctx)}
}

func formRequest(t *testing.T, values map[string]string, attachments int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i := 0; i < attachments; i++ {
		fw, err := mw.CreateFormFile("attachments", "notice.pdf")
		require.NoError(t, err)
		_, err = fw.Write(pdfBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type announcementBody struct {
	ID           primitive.ObjectID `json:"_id"`
	Subject      string             `json:"subject"`
	Body         string             `json:"body"`
	Status       string             `json:"status"`
	ScheduledFor *time.Time         `json:"scheduledFor"`
	Attachments  []string           `json:"attachments"`
	SenderName   string             `json:"senderName"`
	Recipients   int                `json:"recipients"`
}

func (e env) notificationsFor(t *testing.T, recipient primitive.ObjectID) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := e.fx.DB().Collection("notifications").CountDocuments(ctx, bson.M{"recipient": recipient})
	require.NoError(t, err)
	return n
}

func TestCreate_RequiredFields(t *testing.T) {
	e := newEnv(t)
	admin := testutil.AdminPrincipal(models.RoleMandalAdmin, &e.tr.Mandal.ID)

	rec := testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{"subject": "Meeting"}, 0), admin))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "Please fill in all required fields")

	rec = testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/", map[string]string{"subject": "x"}), admin))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{
		"subject": "Meeting", "body": "Hall at 10", "targetScope": "selected", "targetType": "villages",
		"selectedTargets": "[]",
	}, 0), admin))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestCreate_SendsWithinScope(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	inside := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000000501", Address: e.tr.Address()})
	otherMandal := e.fx.CreateLocation(ctx, "Nakrekal", models.LocationMandal, &e.tr.District)
	outsideAddr := e.tr.Address()
	outsideAddr.Mandal = &otherMandal.ID
	outside := e.fx.CreateMember(ctx, models.Member{Surname: "Rao", Name: "Suresh", MobileNumber: "9000000502", Address: outsideAddr})

	admin := testutil.AdminPrincipal(models.RoleMandalAdmin, &e.tr.Mandal.ID)
	rec := testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{
		"subject":     "Gram sabha",
		"body":        "Meeting on Monday\n<script>alert(1)</script>",
		"targetScope": "whole",
		"targetType":  "villages",
	}, 2), admin))
	rec.AssertStatus(t, http.StatusCreated)

	var body announcementBody
	rec.Decode(t, &body)
	assert.Equal(t, models.AnnouncementSent, body.Status)
	assert.Equal(t, 1, body.Recipients)
	assert.NotContains(t, body.Body, "<script>")
	require.Len(t, body.Attachments, 2)
	for _, a := range body.Attachments {
		assert.True(t, strings.HasPrefix(a, "uploads/"), a)
	}

	assert.EqualValues(t, 1, e.notificationsFor(t, inside.ID))
	assert.EqualValues(t, 0, e.notificationsFor(t, outside.ID))
}

func TestCreate_SelectedVillages(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	other := e.fx.CreateLocation(ctx, "Thakkellapadu", models.LocationVillage, &e.tr.Mandal)
	otherAddr := e.tr.Address()
	otherAddr.Village = &other.ID
	inVillage := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000000601", Address: e.tr.Address()})
	inOther := e.fx.CreateMember(ctx, models.Member{Surname: "Rao", Name: "Suresh", MobileNumber: "9000000602", Address: otherAddr})

	rec := testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{
		"subject":         "Water supply",
		"body":            "<p>Tank cleaning</p>",
		"targetScope":     "selected",
		"targetType":      "villages",
		"selectedTargets": `["` + other.ID.Hex() + `"]`,
	}, 0), testutil.SuperAdmin()))
	rec.AssertStatus(t, http.StatusCreated)

	assert.EqualValues(t, 0, e.notificationsFor(t, inVillage.ID))
	assert.EqualValues(t, 1, e.notificationsFor(t, inOther.ID))
}

func TestCreate_ScheduledLater(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000000701", Address: e.tr.Address()})

	admin := testutil.AdminPrincipal(models.RoleVillageAdmin, &e.tr.Village.ID)
	rec := testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{
		"subject":       "Camp",
		"body":          "Health camp",
		"targetScope":   "whole",
		"targetType":    "villages",
		"schedule":      "later",
		"scheduledDate": "2030-01-15T09:30",
	}, 0), admin))
	rec.AssertStatus(t, http.StatusCreated)

	var body announcementBody
	rec.Decode(t, &body)
	assert.Equal(t, models.AnnouncementScheduled, body.Status)
	require.NotNil(t, body.ScheduledFor)
	assert.Equal(t, time.Date(2030, 1, 15, 9, 30, 0, 0, time.UTC), body.ScheduledFor.UTC())
	assert.EqualValues(t, 0, e.notificationsFor(t, m.ID))

	rec = testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{
		"subject": "Camp", "body": "Health camp", "targetScope": "whole", "targetType": "villages",
		"schedule": "later", "scheduledDate": "next week",
	}, 0), admin))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestCreate_TooManyAttachments(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{
		"subject": "Files", "body": "See attached", "targetScope": "whole", "targetType": "villages",
	}, announcements.MaxAttachments+1), testutil.SuperAdmin()))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestList_NewestFirst(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sender := e.fx.CreateAdmin(ctx, "nalgonda_admin", models.RoleDistrictAdmin, "password123", &e.tr.District.ID)
	p := testutil.AdminPrincipal(models.RoleDistrictAdmin, &e.tr.District.ID)
	p.ID = sender.ID

	for _, subject := range []string{"First", "Second"} {
		rec := testutil.NewRecorder()
		e.h.Create(rec, testutil.WithUser(formRequest(t, map[string]string{
			"subject": subject, "body": "text", "targetScope": "whole", "targetType": "districts", "status": "draft",
		}, 0), p))
		rec.AssertStatus(t, http.StatusCreated)
		time.Sleep(5 * time.Millisecond)
	}

	rec := testutil.NewRecorder()
	e.h.List(rec, testutil.NewAuthenticatedRequest("GET", "/", testutil.MemberPrincipal(models.Member{Name: "Ravi"})))
	rec.AssertStatus(t, http.StatusOK)

	var list []announcementBody
	rec.Decode(t, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Subject)
	assert.Equal(t, "First", list[1].Subject)
	assert.Equal(t, models.AnnouncementDraft, list[0].Status)
	assert.Equal(t, "nalgonda_admin", list[0].SenderName)
}
