package health_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mewsorg/mews/internal/app/features/health"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func TestServe_AllUp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	files, err := filestore.NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	h := health.NewHandler(db.Client(), files, zap.NewNop())

	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewRequest(http.MethodGet, "/health"))

	rec.AssertStatus(t, http.StatusOK)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body healthBody
	rec.Decode(t, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "storage": "ok"}, body.Checks)
}

func TestServe_DatabaseDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := db.Client()
	h := health.NewHandler(client, nil, zap.NewNop())
	require.NoError(t, client.Disconnect(context.Background()))

	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewRequest(http.MethodGet, "/health"))

	rec.AssertStatus(t, http.StatusServiceUnavailable)
	var body healthBody
	rec.Decode(t, &body)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "down", body.Checks["database"])
	assert.NotContains(t, body.Checks, "storage")
}

func TestServe_FailingCheckOnly(t *testing.T) {
	h := &health.Handler{
		Checks: []health.Check{
			{Name: "database", Run: func(context.Context) error { return nil }},
			{Name: "storage", Run: func(context.Context) error { return errors.New("bucket gone") }},
		},
		Log: zap.NewNop(),
	}

	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewRequest(http.MethodGet, "/health"))

	rec.AssertStatus(t, http.StatusServiceUnavailable)
	var body healthBody
	rec.Decode(t, &body)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "down", body.Checks["storage"])
}

func TestServeLive(t *testing.T) {
	h := &health.Handler{Log: zap.NewNop()}
	rec := testutil.NewRecorder()
	h.ServeLive(rec, testutil.NewRequest(http.MethodGet, "/health/live"))
	rec.AssertStatus(t, http.StatusOK)
}
