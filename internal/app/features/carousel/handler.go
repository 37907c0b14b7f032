// internal/app/features/carousel/handler.go
package carousel

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/store/audit"
	carouselstore "github.com/mewsorg/mews/internal/app/store/carousel"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgNoImage    = "No image file uploaded"
	msgNotFound   = "Image not found"
	msgNoSelected = "No images selected"
)

// Handler manages the landing-page banners.
type Handler struct {
	Store    *carouselstore.Store
	Files    filestore.Store
	Uploads  *uploads.Parser
	Signer   *filestore.Signer
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger

	now func() time.Time
}

func NewHandler(
	db *mongo.Database,
	files filestore.Store,
	signer *filestore.Signer,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Store:    carouselstore.New(db),
		Files:    files,
		Uploads:  &uploads.Parser{Store: files},
		Signer:   signer,
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
		now:      time.Now,
	}
}

func (h *Handler) signed(ctx context.Context, imgs []models.CarouselImage) []models.CarouselImage {
	for i := range imgs {
		h.Signer.SignAll(ctx, &imgs[i].ImageURL)
	}
	return imgs
}

// Public handles GET /api/carousel/public. No sign-in needed.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	imgs, err := h.Store.ListActive(ctx, h.now())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list public carousel failed", err, "")
		return
	}
	jsonutil.OK(w, h.signed(ctx, imgs))
}

// All handles GET /api/carousel/all.
func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	imgs, err := h.Store.ListAll(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list carousel failed", err, "")
		return
	}
	jsonutil.OK(w, h.signed(ctx, imgs))
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func parseExpiry(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// Upload handles POST /api/carousel: one "image" file plus title,
// description, order, isActive and an optional expiryDate.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	form, err := h.Uploads.Parse(w, r, uploads.FieldLimits{"image": 1})
	if err != nil {
		var fe *uploads.FieldError
		switch {
		case errors.Is(err, uploads.ErrNotMultipart):
			jsonutil.Error(w, r, http.StatusBadRequest, msgNoImage)
		case errors.As(err, &fe):
			h.ErrLog.LogBadRequest(w, r, "carousel image rejected", err, fe.Field+": "+fe.Err.Error())
		default:
			h.ErrLog.LogBadRequest(w, r, "carousel form parse failed", err, "Image upload failed")
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ref := form.File("image")
	if ref == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, msgNoImage)
		return
	}
	expiry, ok := parseExpiry(form.Get("expiryDate"))
	if !ok {
		h.Uploads.Discard(context.WithoutCancel(ctx), form)
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid expiry date")
		return
	}

	img, err := h.Store.Create(ctx, models.CarouselImage{
		Title:       form.Get("title"),
		Description: form.Get("description"),
		ImageURL:    ref,
		Order:       form.Int("order"),
		IsActive:    parseBool(form.Get("isActive")),
		ExpiryDate:  expiry,
		UploadedBy:  p.ID,
	})
	if err != nil {
		h.Uploads.Discard(context.WithoutCancel(ctx), form)
		h.ErrLog.LogServerError(w, r, "create carousel image failed", err, "")
		return
	}

	id := img.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleCarousel, audit.ActionCreate, &id, "Uploaded new image: "+titleOr(img))
	h.Signer.SignAll(ctx, &img.ImageURL)
	jsonutil.Created(w, img)
}

func titleOr(img models.CarouselImage) string {
	if img.Title != "" {
		return img.Title
	}
	return img.ID.Hex()
}

type updateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
	IsActive    *bool   `json:"isActive"`
	ExpiryDate  *string `json:"expiryDate"`
}

// Update handles PUT /api/carousel/{id}. Only supplied fields change; an
// empty expiryDate clears the expiry.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	var in updateInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad carousel update", err, "Invalid request body")
		return
	}

	set := bson.M{}
	if in.Title != nil {
		set["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		set["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Order != nil {
		set["order"] = *in.Order
	}
	if in.IsActive != nil {
		set["isActive"] = *in.IsActive
	}
	if in.ExpiryDate != nil {
		expiry, ok := parseExpiry(*in.ExpiryDate)
		if !ok {
			jsonutil.Error(w, r, http.StatusBadRequest, "Invalid expiry date")
			return
		}
		set["expiryDate"] = expiry
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var img models.CarouselImage
	if len(set) == 0 {
		img, err = h.Store.Get(ctx, id)
	} else {
		img, err = h.Store.Update(ctx, id, set)
	}
	if errors.Is(err, carouselstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update carousel image failed", err, "")
		return
	}

	h.AuditLog.Admin(ctx, r, p, audit.ModuleCarousel, audit.ActionUpdate, &id, "Updated image details: "+titleOr(img))
	h.Signer.SignAll(ctx, &img.ImageURL)
	jsonutil.OK(w, img)
}

// removeFile deletes a banner's stored object. Foreign URLs are left alone
// and failures are only logged.
func (h *Handler) removeFile(ctx context.Context, img models.CarouselImage) {
	ref := img.ImageURL
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return
	}
	if err := h.Files.Delete(ctx, ref); err != nil && !errors.Is(err, filestore.ErrNotFound) {
		h.Log.Warn("delete carousel file", zap.String("image_id", img.ID.Hex()), zap.String("ref", ref), zap.Error(err))
	}
}

// Delete handles DELETE /api/carousel/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	img, err := h.Store.Delete(ctx, id)
	if errors.Is(err, carouselstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete carousel image failed", err, "")
		return
	}
	h.removeFile(ctx, img)

	h.AuditLog.Admin(ctx, r, p, audit.ModuleCarousel, audit.ActionDelete, &id, "Deleted image: "+titleOr(img))
	jsonutil.Message(w, "Image removed")
}

type bulkInput struct {
	IDs      []string `json:"ids"`
	IsActive bool     `json:"isActive"`
}

func (in bulkInput) objectIDs() []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(in.IDs))
	for _, s := range in.IDs {
		if id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s)); err == nil {
			out = append(out, id)
		}
	}
	return out
}

type bulkResult struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// BulkUpdate handles PUT /api/carousel/bulk-update: publish or unpublish
// the selected banners.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	var in bulkInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad carousel bulk update", err, msgNoSelected)
		return
	}
	ids := in.objectIDs()
	if len(ids) == 0 {
		jsonutil.Error(w, r, http.StatusBadRequest, msgNoSelected)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Store.BulkSetActive(ctx, ids, in.IsActive)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "bulk update carousel failed", err, "")
		return
	}

	action, verb := audit.ActionPublish, "published"
	if !in.IsActive {
		action, verb = audit.ActionUnpublish, "unpublished"
	}
	h.AuditLog.Admin(ctx, r, p, audit.ModuleCarousel, action, nil, "Bulk "+verb+" "+strconv.FormatInt(n, 10)+" images")
	jsonutil.OK(w, bulkResult{Message: "Successfully updated " + strconv.FormatInt(n, 10) + " images", Count: n})
}

// BulkDelete handles POST /api/carousel/bulk-delete.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	var in bulkInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad carousel bulk delete", err, msgNoSelected)
		return
	}
	ids := in.objectIDs()
	if len(ids) == 0 {
		jsonutil.Error(w, r, http.StatusBadRequest, msgNoSelected)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	removed, err := h.Store.BulkDelete(ctx, ids)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "bulk delete carousel failed", err, "")
		return
	}
	for _, img := range removed {
		h.removeFile(ctx, img)
	}

	n := int64(len(removed))
	h.AuditLog.Admin(ctx, r, p, audit.ModuleCarousel, audit.ActionDelete, nil, "Bulk deleted "+strconv.FormatInt(n, 10)+" images")
	jsonutil.OK(w, bulkResult{Message: "Successfully deleted " + strconv.FormatInt(n, 10) + " images", Count: n})
}
