// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	notificationstore "github.com/mewsorg/mews/internal/app/store/notifications"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgNotFound      = "Notification not found"
	msgNotAuthorized = "Not authorized"
)

// Handler serves a principal's own notifications.
type Handler struct {
	Store  *notificationstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  notificationstore.New(db),
		ErrLog: errLog,
		Log:    logger,
	}
}

// List handles GET /api/notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Store.ListForRecipient(ctx, p.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list notifications failed", err, "")
		return
	}
	jsonutil.OK(w, list)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Store.UnreadCount(ctx, p.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count unread notifications failed", err, "")
		return
	}
	jsonutil.OK(w, map[string]int64{"unread": n})
}

// ownershipError maps a store error on a single notification to a response.
// It reports whether err was handled.
func (h *Handler) ownershipError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, notificationstore.ErrNotFound):
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
	case errors.Is(err, notificationstore.ErrNotOwner):
		h.Log.Warn("notification owned by another recipient", zap.String("id", chi.URLParam(r, "id")))
		jsonutil.Error(w, r, http.StatusUnauthorized, msgNotAuthorized)
	default:
		h.ErrLog.LogServerError(w, r, "notification update failed", err, "")
	}
	return true
}

func notificationID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}

// MarkRead handles PUT /api/notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	id, ok := notificationID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Store.MarkRead(ctx, id, p.ID)
	if h.ownershipError(w, r, err) {
		return
	}
	jsonutil.OK(w, n)
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Store.MarkAllRead(ctx, p.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "mark all notifications read failed", err, "")
		return
	}
	jsonutil.Message(w, "All notifications marked as read")
}

// Delete handles DELETE /api/notifications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	id, ok := notificationID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.ownershipError(w, r, h.Store.Delete(ctx, id, p.ID)) {
		return
	}
	jsonutil.Message(w, "Notification removed")
}
