// internal/app/features/institutions/handler.go
package institutions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/store/audit"
	institutionstore "github.com/mewsorg/mews/internal/app/store/institutions"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/locationcache"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgNotFound      = "Institution not found"
	msgNotAuthorized = "Not authorized to access this institution"
)

// Handler serves partner institution registration and administration.
type Handler struct {
	Institutions *institutionstore.Store
	Locations    *locationcache.Cache
	AuditLog     *auditlog.Logger
	ErrLog       *uierrors.ErrorLogger
	Log          *zap.Logger
}

func NewHandler(db *mongo.Database, locs *locationcache.Cache, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Institutions: institutionstore.New(db),
		Locations:    locs,
		AuditLog:     audit,
		ErrLog:       errLog,
		Log:          logger,
	}
}

type registerRequest struct {
	Type               string   `json:"type"`
	Name               string   `json:"name"`
	OwnerName          string   `json:"ownerName"`
	MobileNumber       string   `json:"mobileNumber"`
	WhatsappNumber     string   `json:"whatsappNumber"`
	FullAddress        string   `json:"fullAddress"`
	GoogleMapsLink     string   `json:"googleMapsLink"`
	DiscountPercentage string   `json:"mewsDiscountPercentage"`
	ServicesOffered    []string `json:"servicesOffered"`
}

// HandleRegister handles POST /api/institutions. Registration is public and
// starts PENDING.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad institution body", err, "Invalid institution data")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inst, err := h.Institutions.Create(ctx, models.Institution{
		Type:               req.Type,
		Name:               req.Name,
		OwnerName:          strings.TrimSpace(req.OwnerName),
		MobileNumber:       req.MobileNumber,
		WhatsappNumber:     strings.TrimSpace(req.WhatsappNumber),
		FullAddress:        strings.TrimSpace(req.FullAddress),
		GoogleMapsLink:     strings.TrimSpace(req.GoogleMapsLink),
		DiscountPercentage: strings.TrimSpace(req.DiscountPercentage),
		ServicesOffered:    req.ServicesOffered,
	})
	if errors.Is(err, institutionstore.ErrInvalid) {
		jsonutil.Error(w, r, http.StatusBadRequest, "Please include all required fields")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create institution failed", err, "")
		return
	}
	jsonutil.Created(w, map[string]any{
		"_id":     inst.ID,
		"name":    inst.Name,
		"message": "Institution registered successfully",
	})
}

// addressScope returns the fullAddress substring an admin is limited to.
// Institutions store a free-text address, so the admin's location name is
// matched against it. Super and state admins are unrestricted.
func (h *Handler) addressScope(ctx context.Context, p *auth.Principal) (string, bool) {
	switch {
	case p.Role == models.RoleSuperAdmin, p.Role == models.RoleStateAdmin:
		return "", true
	case p.AssignedLocation == nil:
		return "", false
	}
	name := h.Locations.Name(ctx, p.AssignedLocation)
	return name, name != ""
}

// ServeList handles GET /api/institutions.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	contains, ok := h.addressScope(ctx, p)
	if !ok {
		jsonutil.OK(w, []models.Institution{})
		return
	}
	rows, err := h.Institutions.List(ctx, institutionstore.ListFilter{
		AddressContains: contains,
		Status:          strings.ToUpper(query.Get(r, "status")),
		Type:            query.Get(r, "type"),
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list institutions failed", err, "")
		return
	}
	jsonutil.OK(w, rows)
}

// owns reports whether p is the institution id (or a login linked to it).
func owns(p *auth.Principal, id primitive.ObjectID) bool {
	if p.Kind == models.KindInstitution && p.ID == id {
		return true
	}
	return p.InstitutionID != nil && *p.InstitutionID == id
}

// load fetches the {id} institution and checks that p is the institution
// itself or an admin.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request, p *auth.Principal) (models.Institution, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid institution id")
		return models.Institution{}, false
	}
	if !owns(p, id) && !models.IsAdminRole(p.Role) {
		h.ErrLog.LogForbidden(w, r, "institution access denied", msgNotAuthorized)
		return models.Institution{}, false
	}
	inst, err := h.Institutions.Get(ctx, id)
	if errors.Is(err, institutionstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return models.Institution{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "get institution failed", err, "")
		return models.Institution{}, false
	}
	return inst, true
}

// ServeGet handles GET /api/institutions/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inst, ok := h.load(ctx, w, r, p)
	if !ok {
		return
	}
	jsonutil.OK(w, inst)
}

type updateRequest struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	FullAddress        string   `json:"fullAddress"`
	MobileNumber       string   `json:"mobileNumber"`
	WhatsappNumber     string   `json:"whatsappNumber"`
	OwnerName          string   `json:"ownerName"`
	AdminName          string   `json:"adminName"`
	GoogleMapsLink     string   `json:"googleMapsLink"`
	DiscountPercentage string   `json:"mewsDiscountPercentage"`
	ServicesOffered    []string `json:"servicesOffered"`
	VerificationStatus string   `json:"verificationStatus"`
}

// HandleUpdate handles PUT /api/institutions/{id}. Empty fields keep their
// stored value. Only admins may change the verification status.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	var req updateRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad institution update", err, "Invalid institution data")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inst, ok := h.load(ctx, w, r, p)
	if !ok {
		return
	}

	set := bson.M{}
	put := func(path, v string) {
		if v = strings.TrimSpace(v); v != "" {
			set[path] = v
		}
	}
	put("name", req.Name)
	put("type", req.Type)
	put("fullAddress", req.FullAddress)
	put("mobileNumber", req.MobileNumber)
	put("whatsappNumber", req.WhatsappNumber)
	put("ownerName", req.OwnerName)
	put("ownerName", req.AdminName)
	put("googleMapsLink", req.GoogleMapsLink)
	put("mewsDiscountPercentage", req.DiscountPercentage)
	if req.ServicesOffered != nil {
		set["servicesOffered"] = req.ServicesOffered
	}

	if st := strings.ToUpper(strings.TrimSpace(req.VerificationStatus)); st != "" && st != inst.VerificationStatus {
		if !models.IsAdminRole(p.Role) {
			h.ErrLog.LogForbidden(w, r, "institution self-verification", "Only admins can change verification status")
			return
		}
		switch st {
		case models.InstitutionPending, models.InstitutionApproved, models.InstitutionRejected:
		default:
			jsonutil.Error(w, r, http.StatusBadRequest, "Invalid status")
			return
		}
		set["verificationStatus"] = st
		set["verifiedBy"] = p.ID
	}

	updated, err := h.Institutions.Update(ctx, inst.ID, set)
	if errors.Is(err, institutionstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update institution failed", err, "")
		return
	}
	if models.IsAdminRole(p.Role) {
		id := inst.ID
		action := audit.ActionUpdate
		if _, ok := set["verificationStatus"]; ok {
			action = audit.ActionStatus
		}
		h.AuditLog.Admin(ctx, r, p, audit.ModuleInstitution, action, &id, "Updated institution "+updated.Name)
	}
	jsonutil.OK(w, updated)
}

// HandleDelete handles DELETE /api/institutions/{id} (admins only).
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inst, ok := h.load(ctx, w, r, p)
	if !ok {
		return
	}
	if err := h.Institutions.Delete(ctx, inst.ID); err != nil {
		if errors.Is(err, institutionstore.ErrNotFound) {
			jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
			return
		}
		h.ErrLog.LogServerError(w, r, "delete institution failed", err, "")
		return
	}
	id := inst.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleInstitution, audit.ActionDelete, &id, "Deleted institution "+inst.Name)
	jsonutil.Message(w, "Institution removed")
}
