package fundrequests_test

import (
	"net/http"
	"testing"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/features/fundrequests"
	fundrequeststore "github.com/mewsorg/mews/internal/app/store/fundrequests"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type env struct {
	h  *fundrequests.Handler
	fx *testutil.Fixtures
	tr testutil.Tree
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	return env{
		h:  fundrequests.NewHandler(db, nil, uierrors.NewErrorLogger(logger), logger),
		fx: fx,
		tr: fx.CreateTree(ctx),
	}
}

func (e env) create(t *testing.T, p *auth.Principal, body map[string]any) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	e.h.Create(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/", body), p))
	return rec
}

func (e env) list(t *testing.T, p *auth.Principal) []models.FundRequest {
	t.Helper()
	rec := testutil.NewRecorder()
	e.h.List(rec, testutil.NewAuthenticatedRequest("GET", "/", p))
	rec.AssertStatus(t, http.StatusOK)
	var out []models.FundRequest
	rec.Decode(t, &out)
	return out
}

func (e env) get(p *auth.Principal, id string) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	req := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("GET", "/"+id, p), "id", id)
	e.h.Get(rec, req)
	return rec
}

func TestCreate_Member(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000001001", Address: e.tr.Address()})

	rec := e.create(t, testutil.MemberPrincipal(m), map[string]any{
		"type":           "sports",
		"amountRequired": 25000,
		"courseName":     "Kabaddi camp",
		"ifscCode":       "sbin0001234",
	})
	rec.AssertStatus(t, http.StatusCreated)

	var fr models.FundRequest
	rec.Decode(t, &fr)
	assert.Equal(t, models.PurposeEducation, fr.Purpose)
	assert.Equal(t, models.FundPendingApproval, fr.Status)
	assert.Equal(t, "SBIN0001234", fr.BankDetails.IFSCCode)
	assert.Equal(t, "Application for Education assistance", fr.Description)
	require.NotNil(t, fr.Beneficiary)
	assert.Equal(t, m.ID, *fr.Beneficiary)
	require.NotNil(t, fr.LocationScope)
	assert.Equal(t, e.tr.Village.ID, *fr.LocationScope)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000001002", Address: e.tr.Address()})
	p := testutil.MemberPrincipal(m)

	rec := e.create(t, p, map[string]any{"purpose": "Holiday", "amountRequired": 100})
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.create(t, p, map[string]any{"purpose": "medical", "amountRequired": 0})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "Amount required must be greater than zero")
}

func TestCreate_AdminOnBehalf(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000001003", Address: e.tr.Address()})

	other := e.fx.CreateLocation(ctx, "Nakrekal", models.LocationMandal, &e.tr.District)
	outsider := testutil.AdminPrincipal(models.RoleMandalAdmin, &other.ID)
	rec := e.create(t, outsider, map[string]any{"purpose": "Medical", "amountRequired": 5000, "beneficiary": m.ID.Hex()})
	rec.AssertStatus(t, http.StatusForbidden)

	admin := testutil.AdminPrincipal(models.RoleMandalAdmin, &e.tr.Mandal.ID)
	rec = e.create(t, admin, map[string]any{"purpose": "Medical", "amountRequired": 5000, "beneficiary": m.ID.Hex()})
	rec.AssertStatus(t, http.StatusCreated)
	var fr models.FundRequest
	rec.Decode(t, &fr)
	assert.Equal(t, admin.ID, fr.RequestedBy)
	require.NotNil(t, fr.Beneficiary)
	assert.Equal(t, m.ID, *fr.Beneficiary)

	rec = e.create(t, admin, map[string]any{"purpose": "Medical", "amountRequired": 5000, "beneficiary": primitive.NewObjectID().Hex()})
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestList_Scoped(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ravi := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000001004", Address: e.tr.Address()})
	suresh := e.fx.CreateMember(ctx, models.Member{Surname: "Rao", Name: "Suresh", MobileNumber: "9000001005", Address: e.tr.Address()})

	e.create(t, testutil.MemberPrincipal(ravi), map[string]any{"purpose": "Medical", "amountRequired": 1000}).AssertStatus(t, http.StatusCreated)
	e.create(t, testutil.MemberPrincipal(suresh), map[string]any{"purpose": "Legal", "amountRequired": 2000}).AssertStatus(t, http.StatusCreated)

	mine := e.list(t, testutil.MemberPrincipal(ravi))
	require.Len(t, mine, 1)
	assert.Equal(t, models.PurposeMedical, mine[0].Purpose)

	assert.Len(t, e.list(t, testutil.AdminPrincipal(models.RoleMandalAdmin, &e.tr.Mandal.ID)), 2)
	assert.Len(t, e.list(t, testutil.AdminPrincipal(models.RoleVillageAdmin, &e.tr.Village.ID)), 2)
	assert.Len(t, e.list(t, testutil.SuperAdmin()), 2)

	other := e.fx.CreateLocation(ctx, "Nakrekal", models.LocationMandal, &e.tr.District)
	assert.Empty(t, e.list(t, testutil.AdminPrincipal(models.RoleMandalAdmin, &other.ID)))
	assert.Empty(t, e.list(t, testutil.AdminPrincipal(models.RoleDistrictAdmin, nil)))
}

func TestGet(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ravi := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000001006", Address: e.tr.Address()})
	suresh := e.fx.CreateMember(ctx, models.Member{Surname: "Rao", Name: "Suresh", MobileNumber: "9000001007", Address: e.tr.Address()})

	rec := e.create(t, testutil.MemberPrincipal(ravi), map[string]any{"purpose": "Emergency", "amountRequired": 3000})
	rec.AssertStatus(t, http.StatusCreated)
	var fr models.FundRequest
	rec.Decode(t, &fr)

	e.get(testutil.MemberPrincipal(ravi), fr.ID.Hex()).AssertStatus(t, http.StatusOK)
	e.get(testutil.MemberPrincipal(suresh), fr.ID.Hex()).AssertStatus(t, http.StatusForbidden)
	e.get(testutil.AdminPrincipal(models.RoleDistrictAdmin, &e.tr.District.ID), fr.ID.Hex()).AssertStatus(t, http.StatusOK)

	rec = e.get(testutil.SuperAdmin(), primitive.NewObjectID().Hex())
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertMessage(t, "Fund Request not found")
	e.get(testutil.SuperAdmin(), "nope").AssertStatus(t, http.StatusNotFound)
}

func TestReview(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ravi := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000001008", Address: e.tr.Address()})

	rec := e.create(t, testutil.MemberPrincipal(ravi), map[string]any{"purpose": "Community", "amountRequired": 8000})
	rec.AssertStatus(t, http.StatusCreated)
	var fr models.FundRequest
	rec.Decode(t, &fr)

	review := func(p *auth.Principal, status string) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		id := fr.ID.Hex()
		req := testutil.WithChiURLParam(testutil.WithUser(testutil.NewJSONRequest("PUT", "/"+id+"/status", map[string]string{"status": status, "notes": "verified"}), p), "id", id)
		e.h.Review(rec, req)
		return rec
	}

	admin := testutil.AdminPrincipal(models.RoleVillageAdmin, &e.tr.Village.ID)
	review(admin, "COMPLETED").AssertStatus(t, http.StatusBadRequest)

	rec = review(admin, "active")
	rec.AssertStatus(t, http.StatusOK)
	var got models.FundRequest
	rec.Decode(t, &got)
	assert.Equal(t, models.FundActive, got.Status)
	assert.Equal(t, models.RoleVillageAdmin, got.ApprovalLevel)
	require.Len(t, got.ApprovalHistory, 1)
	assert.Equal(t, admin.ID, got.ApprovalHistory[0].ActionBy)
	assert.Equal(t, "verified", got.ApprovalHistory[0].Notes)

	other := e.fx.CreateLocation(ctx, "Nakrekal", models.LocationMandal, &e.tr.District)
	review(testutil.AdminPrincipal(models.RoleMandalAdmin, &other.ID), "REJECTED").AssertStatus(t, http.StatusForbidden)
}

func TestReview_OwnAndOutOfScopeRequests(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ravi := e.fx.CreateMember(ctx, models.Member{Surname: "Goud", Name: "Ravi", MobileNumber: "9000001009", Address: e.tr.Address()})

	review := func(p *auth.Principal, id primitive.ObjectID) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		hex := id.Hex()
		req := testutil.WithChiURLParam(testutil.WithUser(testutil.NewJSONRequest("PUT", "/"+hex+"/status", map[string]string{"status": "ACTIVE"}), p), "id", hex)
		e.h.Review(rec, req)
		return rec
	}

	raiser := testutil.AdminPrincipal(models.RoleVillageAdmin, &e.tr.Village.ID)
	rec := e.create(t, raiser, map[string]any{"purpose": "Medical", "amountRequired": 4000, "beneficiary": ravi.ID.Hex()})
	rec.AssertStatus(t, http.StatusCreated)
	var own models.FundRequest
	rec.Decode(t, &own)

	rec = review(raiser, own.ID)
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertMessage(t, "You cannot review your own fund request")

	review(testutil.AdminPrincipal(models.RoleMandalAdmin, &e.tr.Mandal.ID), own.ID).AssertStatus(t, http.StatusOK)

	// Raised by the admin but scoped to a village outside their jurisdiction.
	elsewhere := e.fx.CreateLocation(ctx, "Chityal", models.LocationVillage, &e.tr.Mandal)
	stray, err := fundrequeststore.New(e.fx.DB()).Create(ctx, models.FundRequest{
		Purpose:        models.PurposeCommunity,
		AmountRequired: 1500,
		RequestedBy:    raiser.ID,
		LocationScope:  &elsewhere.ID,
	})
	require.NoError(t, err)
	review(raiser, stray.ID).AssertStatus(t, http.StatusForbidden)

	stored, err := fundrequeststore.New(e.fx.DB()).Get(ctx, stray.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FundPendingApproval, stored.Status)
}
