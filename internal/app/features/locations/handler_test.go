package locations_test

import (
	"net/http"
	"testing"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/features/locations"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*locations.Handler, testutil.Tree) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	tr := testutil.NewFixtures(t, db).CreateTree(ctx)
	logger := zap.NewNop()
	return locations.NewHandler(db, uierrors.NewErrorLogger(logger), logger), tr
}

func TestServeList(t *testing.T) {
	h, tr := newTestHandler(t)

	tests := []struct {
		name   string
		target string
		status int
		want   string
	}{
		{"default lists states", "/", http.StatusOK, "Telangana"},
		{"children by parent", "/?parent=" + tr.District.ID.Hex(), http.StatusOK, "Miryalaguda"},
		{"type and parent", "/?type=village&parent=" + tr.Mandal.ID.Hex(), http.StatusOK, "Alagadapa"},
		{"bad parent", "/?parent=nope", http.StatusBadRequest, ""},
		{"bad type", "/?type=COUNTRY", http.StatusBadRequest, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.ServeList(rec, testutil.NewRequest("GET", tc.target))
			rec.AssertStatus(t, tc.status)
			if tc.want == "" {
				return
			}
			var locs []models.Location
			rec.Decode(t, &locs)
			if len(locs) != 1 || locs[0].Name != tc.want {
				t.Errorf("got %+v, want one %q", locs, tc.want)
			}
		})
	}
}

func TestServeGet(t *testing.T) {
	h, tr := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.ServeGet(rec, testutil.WithChiURLParam(testutil.NewRequest("GET", "/"), "id", tr.Village.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)
	var loc models.Location
	rec.Decode(t, &loc)
	if len(loc.Ancestors) != 3 {
		t.Errorf("ancestors: %+v", loc.Ancestors)
	}

	rec = testutil.NewRecorder()
	h.ServeGet(rec, testutil.WithChiURLParam(testutil.NewRequest("GET", "/"), "id", primitive.NewObjectID().Hex()))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertMessage(t, "Location not found")
}
