// internal/app/features/locations/handler.go
package locations

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the public location lookups the registration and admin
// forms use for their cascading dropdowns.
type Handler struct {
	Locations *locationstore.Store
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Locations: locationstore.New(db),
		ErrLog:    errLog,
		Log:       logger,
	}
}

// ServeList handles GET /api/locations?type=&parent=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	typ := strings.ToUpper(query.Get(r, "type"))
	if typ != "" && !models.IsLocationType(typ) {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid location type")
		return
	}
	var parent *primitive.ObjectID
	if raw := query.Get(r, "parent"); raw != "" {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.Error(w, r, http.StatusBadRequest, "Invalid parent id")
			return
		}
		parent = &oid
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	locs, err := h.Locations.List(ctx, typ, parent)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list locations failed", err, "")
		return
	}
	jsonutil.OK(w, locs)
}

// ServeGet handles GET /api/locations/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid location id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	loc, err := h.Locations.Get(ctx, id)
	if errors.Is(err, locationstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, "Location not found")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "get location failed", err, "")
		return
	}
	jsonutil.OK(w, loc)
}
