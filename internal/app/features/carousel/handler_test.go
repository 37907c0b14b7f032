package carousel_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mewsorg/mews/internal/app/features/carousel"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func setup(t *testing.T) (*carousel.Handler, *filestore.Local) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	files, err := filestore.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	signer := &filestore.Signer{Store: files, Log: logger}
	return carousel.NewHandler(db, files, signer, nil, uierrors.NewErrorLogger(logger), logger), files
}

func upload(t *testing.T, h *carousel.Handler, values map[string]string, withImage bool) *testutil.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withImage {
		fw, err := mw.CreateFormFile("image", "banner.png")
		require.NoError(t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := testutil.NewRecorder()
	h.Upload(rec, testutil.WithUser(req, testutil.SuperAdmin()))
	return rec
}

func created(t *testing.T, rec *testutil.ResponseRecorder) models.CarouselImage {
	t.Helper()
	rec.AssertStatus(t, http.StatusCreated)
	var img models.CarouselImage
	rec.Decode(t, &img)
	return img
}

func public(t *testing.T, h *carousel.Handler) []models.CarouselImage {
	t.Helper()
	rec := testutil.NewRecorder()
	h.Public(rec, testutil.NewRequest("GET", "/public"))
	rec.AssertStatus(t, http.StatusOK)
	var out []models.CarouselImage
	rec.Decode(t, &out)
	return out
}

func TestUpload(t *testing.T) {
	h, files := setup(t)

	rec := upload(t, h, map[string]string{"title": "Welcome"}, false)
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "No image file uploaded")

	img := created(t, upload(t, h, map[string]string{"title": "Welcome", "order": "2", "isActive": "true"}, true))
	assert.Equal(t, "Welcome", img.Title)
	assert.Equal(t, 2, img.Order)
	assert.True(t, img.IsActive)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	ok, err := files.Exists(ctx, img.ImageURL)
	require.NoError(t, err)
	assert.True(t, ok)

	upload(t, h, map[string]string{"expiryDate": "soon"}, true).AssertStatus(t, http.StatusBadRequest)
}

func TestPublic_ActiveAndOrdered(t *testing.T) {
	h, _ := setup(t)
	second := created(t, upload(t, h, map[string]string{"title": "Second", "order": "2", "isActive": "true"}, true))
	first := created(t, upload(t, h, map[string]string{"title": "First", "order": "1", "isActive": "true"}, true))
	created(t, upload(t, h, map[string]string{"title": "Hidden", "isActive": "false"}, true))
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	created(t, upload(t, h, map[string]string{"title": "Expired", "isActive": "true", "expiryDate": past}, true))

	list := public(t, h)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	rec := testutil.NewRecorder()
	h.All(rec, testutil.NewAuthenticatedRequest("GET", "/all", testutil.SuperAdmin()))
	rec.AssertStatus(t, http.StatusOK)
	var all []models.CarouselImage
	rec.Decode(t, &all)
	assert.Len(t, all, 4)
}

func TestUpdateAndDelete(t *testing.T) {
	h, files := setup(t)
	img := created(t, upload(t, h, map[string]string{"title": "Old"}, true))

	call := func(method string, id string, body any) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		req := testutil.WithChiURLParam(testutil.WithUser(testutil.NewJSONRequest(method, "/"+id, body), testutil.SuperAdmin()), "id", id)
		if method == "PUT" {
			h.Update(rec, req)
		} else {
			h.Delete(rec, req)
		}
		return rec
	}

	rec := call("PUT", img.ID.Hex(), map[string]any{"title": "New", "isActive": true})
	rec.AssertStatus(t, http.StatusOK)
	var got models.CarouselImage
	rec.Decode(t, &got)
	assert.Equal(t, "New", got.Title)
	assert.True(t, got.IsActive)
	assert.Len(t, public(t, h), 1)

	rec = call("DELETE", img.ID.Hex(), nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertMessage(t, "Image removed")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	ok, err := files.Exists(ctx, img.ImageURL)
	require.NoError(t, err)
	assert.False(t, ok)

	call("DELETE", img.ID.Hex(), nil).AssertStatus(t, http.StatusNotFound)
	call("PUT", "bogus", map[string]any{"title": "x"}).AssertStatus(t, http.StatusNotFound)
}

func TestBulk(t *testing.T) {
	h, _ := setup(t)
	a := created(t, upload(t, h, map[string]string{"title": "A"}, true))
	b := created(t, upload(t, h, map[string]string{"title": "B"}, true))
	c := created(t, upload(t, h, map[string]string{"title": "C"}, true))

	rec := testutil.NewRecorder()
	h.BulkUpdate(rec, testutil.WithUser(testutil.NewJSONRequest("PUT", "/bulk-update", map[string]any{
		"ids": []string{a.ID.Hex(), b.ID.Hex()}, "isActive": true,
	}), testutil.SuperAdmin()))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertMessage(t, "Successfully updated 2 images")
	assert.Len(t, public(t, h), 2)

	rec = testutil.NewRecorder()
	h.BulkUpdate(rec, testutil.WithUser(testutil.NewJSONRequest("PUT", "/bulk-update", map[string]any{"ids": []string{}}), testutil.SuperAdmin()))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertMessage(t, "No images selected")

	rec = testutil.NewRecorder()
	h.BulkDelete(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/bulk-delete", map[string]any{
		"ids": []string{a.ID.Hex(), c.ID.Hex()},
	}), testutil.SuperAdmin()))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertMessage(t, "Successfully deleted 2 images")

	list := public(t, h)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}
