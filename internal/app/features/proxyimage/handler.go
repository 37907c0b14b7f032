// internal/app/features/proxyimage/handler.go
//
// Package proxyimage streams stored images through the API so browser-side
// canvas rendering (ID cards, application PDFs) is not blocked by CORS on
// a private bucket.
package proxyimage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// CacheControl is sent with every proxied object.
const CacheControl = "public, max-age=86400"

type Handler struct {
	Files  filestore.Store
	Bucket string
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(files filestore.Store, bucket string, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Files: files, Bucket: bucket, ErrLog: errLog, Log: logger}
}

// ref maps the url parameter to a store ref. Bucket URLs and local upload
// paths are accepted; anything else is foreign.
func (h *Handler) ref(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if !filestore.IsBucketURL(raw, h.Bucket) {
			return "", false
		}
		name, err := url.PathUnescape(filestore.ObjectName(raw, h.Bucket))
		if err != nil || name == "" {
			return "", false
		}
		return name, true
	}
	name := strings.TrimPrefix(strings.ReplaceAll(raw, `\`, "/"), "/")
	if !strings.HasPrefix(name, filestore.LocalPrefix) || strings.Contains(name, "..") {
		return "", false
	}
	return name, true
}

// Serve handles GET /api/proxy-image?url=.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "URL is required")
		return
	}
	ref, ok := h.ref(raw)
	if !ok {
		jsonutil.Error(w, r, http.StatusBadRequest, "Only stored images can be proxied")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	obj, err := h.Files.Open(ctx, ref)
	if errors.Is(err, filestore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "open proxied image failed", err, "Failed to load image")
		return
	}
	defer obj.Body.Close()

	ct := obj.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", CacheControl)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.Log.Warn("proxy image stream", zap.String("ref", ref), zap.Error(err))
	}
}

// Routes mounts the proxy under /api/proxy-image.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	return r
}
