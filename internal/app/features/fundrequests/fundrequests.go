// internal/app/features/fundrequests/fundrequests.go
package fundrequests

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/store/audit"
	fundrequeststore "github.com/mewsorg/mews/internal/app/store/fundrequests"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	msgNotFound      = "Fund Request not found"
	msgForbidden     = "Not authorized to view this fund request"
	msgBadPurpose    = "Purpose must be one of Medical, Education, Emergency, Legal or Community"
	msgBadAmount     = "Amount required must be greater than zero"
	msgBadBeneficary = "Beneficiary not found"
	msgBadStatus     = "Status must be ACTIVE, REJECTED or FROZEN"
	msgOwnRequest    = "You cannot review your own fund request"
	msgReviewScope   = "Not authorized to review this fund request"
)

// educationTypes are application types the mobile app sends that all fall
// under the Education purpose.
var educationTypes = map[string]bool{"education": true, "sports": true, "coaching": true}

// reviewStatuses are the states an admin may move a request to.
var reviewStatuses = map[string]bool{
	models.FundActive:   true,
	models.FundRejected: true,
	models.FundFrozen:   true,
}

type createInput struct {
	Type           string  `json:"type"`
	Purpose        string  `json:"purpose"`
	AmountRequired float64 `json:"amountRequired"`
	Reason         string  `json:"reason"`
	Description    string  `json:"description"`
	CourseName     string  `json:"courseName"`
	EventDate      string  `json:"eventDate"`
	Beneficiary    string  `json:"beneficiary"`

	BankName      string `json:"bankName"`
	BranchName    string `json:"branchName"`
	AccountNumber string `json:"accountNumber"`
	IFSCCode      string `json:"ifscCode"`
}

// purpose resolves the explicit purpose, falling back to the type.
func (in createInput) purpose() string {
	raw := strings.TrimSpace(in.Purpose)
	if raw == "" {
		raw = strings.TrimSpace(in.Type)
	}
	if educationTypes[strings.ToLower(raw)] {
		return models.PurposeEducation
	}
	for _, p := range models.FundPurposes {
		if strings.EqualFold(p, raw) {
			return p
		}
	}
	return raw
}

func parseEventDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Create handles POST /api/fund-requests. Members apply for themselves; an
// admin may apply on behalf of a member in their jurisdiction.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	var in createInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad fund request body", err, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	beneficiary := p.ID
	if p.MemberID != nil {
		beneficiary = *p.MemberID
	}
	if models.IsAdminRole(p.Role) && strings.TrimSpace(in.Beneficiary) != "" {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(in.Beneficiary))
		if err != nil {
			jsonutil.Error(w, r, http.StatusBadRequest, msgBadBeneficary)
			return
		}
		beneficiary = id
	}

	fr := models.FundRequest{
		Purpose:        in.purpose(),
		AmountRequired: in.AmountRequired,
		Description:    strings.TrimSpace(in.Description),
		CourseName:     strings.TrimSpace(in.CourseName),
		EventDate:      parseEventDate(in.EventDate),
		RequestedBy:    p.ID,
		BankDetails: models.FundBankDetails{
			AccountNumber: strings.TrimSpace(in.AccountNumber),
			BankName:      strings.TrimSpace(in.BankName),
			IFSCCode:      strings.ToUpper(strings.TrimSpace(in.IFSCCode)),
			BranchName:    strings.TrimSpace(in.BranchName),
		},
		Status: models.FundPendingApproval,
	}
	if fr.Description == "" {
		fr.Description = strings.TrimSpace(in.Reason)
	}
	if fr.Description == "" {
		fr.Description = "Application for " + fr.Purpose + " assistance"
	}

	m, err := h.Members.Get(ctx, beneficiary)
	switch {
	case err == nil:
		if p.Kind != models.KindMember && (p.MemberID == nil || *p.MemberID != m.ID) {
			if jerr := authz.MemberJurisdiction(p, m.Address); jerr != nil {
				h.ErrLog.LogForbidden(w, r, "fund request beneficiary outside jurisdiction", "Not authorized for this member")
				return
			}
		}
		id := m.ID
		fr.Beneficiary = &id
		fr.LocationScope = m.Address.Village
	case errors.Is(err, memberstore.ErrNotFound):
		if models.IsAdminRole(p.Role) && strings.TrimSpace(in.Beneficiary) != "" {
			jsonutil.Error(w, r, http.StatusBadRequest, msgBadBeneficary)
			return
		}
		// Institutions and admins may raise community requests with no
		// member attached; scope them to the requester's location.
		fr.LocationScope = p.AssignedLocation
	default:
		h.ErrLog.LogServerError(w, r, "load beneficiary failed", err, "")
		return
	}

	fr, err = h.Store.Create(ctx, fr)
	switch {
	case errors.Is(err, fundrequeststore.ErrBadPurpose):
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadPurpose)
		return
	case errors.Is(err, fundrequeststore.ErrBadAmount):
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadAmount)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create fund request failed", err, "")
		return
	}

	id := fr.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleFundRequest, audit.ActionCreate, &id, fr.Purpose)
	h.Log.Info("fund request created",
		zap.String("fund_request_id", fr.ID.Hex()),
		zap.String("purpose", fr.Purpose),
		zap.Float64("amount", fr.AmountRequired))

	jsonutil.Created(w, fr)
}

// visibility is what a principal may see: everything, a set of villages
// (and other locations) by id, or only requests they are party to.
type visibility struct {
	all  bool
	locs []primitive.ObjectID
	own  bool
}

func (h *Handler) visibility(ctx context.Context, p *auth.Principal) (visibility, error) {
	if !models.IsAdminRole(p.Role) {
		return visibility{own: true}, nil
	}
	if p.Role == models.RoleSuperAdmin {
		return visibility{all: true}, nil
	}
	if p.AssignedLocation == nil {
		return visibility{}, nil
	}
	ids, err := h.LocStore.DescendantIDs(ctx, *p.AssignedLocation, locationstore.MaxDescendantDepth)
	if err != nil {
		return visibility{}, err
	}
	return visibility{locs: append([]primitive.ObjectID{*p.AssignedLocation}, ids...)}, nil
}

func (v visibility) filter(p *auth.Principal) bson.M {
	switch {
	case v.all:
		return bson.M{}
	case v.own:
		self := p.ID
		if p.MemberID != nil {
			self = *p.MemberID
		}
		return bson.M{"$or": bson.A{
			bson.M{"beneficiary": self},
			bson.M{"requestedBy": p.ID},
		}}
	case len(v.locs) > 0:
		return bson.M{"$or": bson.A{
			bson.M{"locationScope": bson.M{"$in": v.locs}},
			bson.M{"requestedBy": p.ID},
		}}
	default:
		return bson.M{"requestedBy": p.ID}
	}
}

func (v visibility) allows(p *auth.Principal, fr models.FundRequest) bool {
	if v.all || fr.RequestedBy == p.ID {
		return true
	}
	if v.own {
		self := p.ID
		if p.MemberID != nil {
			self = *p.MemberID
		}
		return fr.Beneficiary != nil && *fr.Beneficiary == self
	}
	if fr.LocationScope == nil {
		return false
	}
	for _, id := range v.locs {
		if id == *fr.LocationScope {
			return true
		}
	}
	return false
}

// canReview reports whether p may change fr's status: a super admin, or an
// admin whose jurisdiction holds fr.LocationScope. Unlike allows, being the
// requester grants nothing.
func (v visibility) canReview(p *auth.Principal, fr models.FundRequest) bool {
	if !models.IsAdminRole(p.Role) {
		return false
	}
	if v.all {
		return true
	}
	if fr.LocationScope == nil {
		return false
	}
	for _, id := range v.locs {
		if id == *fr.LocationScope {
			return true
		}
	}
	return false
}

// ownRequest reports whether p raised fr or is its beneficiary.
func ownRequest(p *auth.Principal, fr models.FundRequest) bool {
	if fr.RequestedBy == p.ID {
		return true
	}
	return p.MemberID != nil && fr.Beneficiary != nil && *fr.Beneficiary == *p.MemberID
}

// List handles GET /api/fund-requests, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	v, err := h.visibility(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "fund request scope failed", err, "")
		return
	}
	filter := v.filter(p)
	if s := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); s != "" {
		filter = bson.M{"$and": bson.A{filter, bson.M{"status": s}}}
	}

	list, err := h.Store.List(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list fund requests failed", err, "")
		return
	}
	jsonutil.OK(w, list)
}

// load fetches the {id} request and checks the principal may see it. It
// writes the error response and returns false on failure.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request, p *auth.Principal) (models.FundRequest, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return models.FundRequest{}, false
	}
	fr, err := h.Store.Get(ctx, id)
	if errors.Is(err, fundrequeststore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return models.FundRequest{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load fund request failed", err, "")
		return models.FundRequest{}, false
	}
	v, err := h.visibility(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "fund request scope failed", err, "")
		return models.FundRequest{}, false
	}
	if !v.allows(p, fr) {
		h.ErrLog.LogForbidden(w, r, "fund request outside scope", msgForbidden)
		return models.FundRequest{}, false
	}
	return fr, true
}

// Get handles GET /api/fund-requests/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	fr, ok := h.load(ctx, w, r, p)
	if !ok {
		return
	}
	jsonutil.OK(w, fr)
}

type reviewInput struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Review handles PUT /api/fund-requests/{id}/status. The reviewing admin's
// role is recorded as the approval level.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	var in reviewInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad review body", err, "Invalid request body")
		return
	}
	status := strings.ToUpper(strings.TrimSpace(in.Status))
	if !reviewStatuses[status] {
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadStatus)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	fr, ok := h.load(ctx, w, r, p)
	if !ok {
		return
	}
	if ownRequest(p, fr) {
		h.ErrLog.LogForbidden(w, r, "fund request self-review", msgOwnRequest)
		return
	}
	v, err := h.visibility(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "fund request scope failed", err, "")
		return
	}
	if !v.canReview(p, fr) {
		h.ErrLog.LogForbidden(w, r, "fund request review outside jurisdiction", msgReviewScope)
		return
	}

	fr, err = h.Store.Review(ctx, fr.ID, status, models.ApprovalEntry{
		Level:    p.Role,
		ActionBy: p.ID,
		Notes:    strings.TrimSpace(in.Notes),
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "review fund request failed", err, "")
		return
	}

	id := fr.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleFundRequest, audit.ActionStatus, &id, status)
	jsonutil.OK(w, fr)
}
