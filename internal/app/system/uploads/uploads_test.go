package uploads_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000000000000000")

type part struct {
	field, filename, ctype string
	body                   []byte
}

func multipartRequest(t *testing.T, values map[string]string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		if p.ctype != "" {
			h.Set("Content-Type", p.ctype)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, _ = w.Write(p.body)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/members", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newParser(t *testing.T, max int64) (*uploads.Parser, *filestore.Local) {
	t.Helper()
	l, err := filestore.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	return &uploads.Parser{Store: l, MaxBytes: max}, l
}

func TestParse_StoresFiles(t *testing.T) {
	p, store := newParser(t, 0)
	req := multipartRequest(t,
		map[string]string{"name": " Ravi ", "age": "34", "email": "undefined"},
		part{"photo", "me.png", "", pngHeader},
		part{"familyMemberPhotos", "kid1.jpg", "image/jpeg", []byte("jpeg")},
		part{"familyMemberPhotos", "kid2.pdf", "application/pdf", []byte("%PDF")},
		part{"ignored", "x.png", "image/png", pngHeader},
	)

	form, err := p.Parse(httptest.NewRecorder(), req, uploads.MemberFields())
	require.NoError(t, err)

	assert.Equal(t, "Ravi", form.Get("name"))
	assert.Equal(t, 34, form.Int("age"))
	assert.Equal(t, "", form.Get("email"))

	photo := form.File("photo")
	require.NotEmpty(t, photo)
	assert.True(t, strings.HasSuffix(photo, "-me.png"))
	ok, err := store.Exists(req.Context(), photo)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Len(t, form.Files["familyMemberPhotos"], 2)
	assert.True(t, strings.HasSuffix(form.FileAt("familyMemberPhotos", 1), "-kid2.pdf"))
	assert.Equal(t, "", form.FileAt("familyMemberPhotos", 5))
	assert.NotContains(t, form.Files, "ignored")
}

func TestParse_Rejects(t *testing.T) {
	p, store := newParser(t, 10)

	req := multipartRequest(t, nil,
		part{"photo", "a.png", "image/png", []byte("small")},
		part{"aadhaarFront", "big.png", "image/png", bytes.Repeat([]byte("x"), 64)},
	)
	_, err := p.Parse(httptest.NewRecorder(), req, uploads.MemberFields())
	assert.True(t, errors.Is(err, uploads.ErrTooLarge), "got %v", err)

	names, _ := store.List(req.Context(), "")
	assert.Empty(t, names, "partial uploads should be removed")

	p.MaxBytes = 0
	req = multipartRequest(t, nil, part{"photo", "run.sh", "text/x-shellscript", []byte("#!/bin/sh")})
	_, err = p.Parse(httptest.NewRecorder(), req, uploads.MemberFields())
	var fe *uploads.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "photo", fe.Field)
	assert.ErrorIs(t, err, uploads.ErrBadType)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	_, err = p.Parse(httptest.NewRecorder(), req, uploads.MemberFields())
	assert.ErrorIs(t, err, uploads.ErrNotMultipart)
}

func TestIndexRefAndAllowed(t *testing.T) {
	assert.Equal(t, 3, uploads.IndexRef("INDEX:3"))
	assert.Equal(t, -1, uploads.IndexRef("photo.jpg"))
	assert.Equal(t, -1, uploads.IndexRef("INDEX:x"))
	assert.True(t, uploads.Allowed("image/jpeg"))
	assert.True(t, uploads.Allowed("application/pdf; charset=binary"))
	assert.False(t, uploads.Allowed("text/plain"))
}
