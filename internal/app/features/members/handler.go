// internal/app/features/members/handler.go
package members

import (
	"context"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	fundrequeststore "github.com/mewsorg/mews/internal/app/store/fundrequests"
	idcounterstore "github.com/mewsorg/mews/internal/app/store/idcounters"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/locationcache"
	"github.com/mewsorg/mews/internal/app/system/memberid"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level entry point for member registration,
// listing and review.
type Handler struct {
	Members      *memberstore.Store
	Locations    *locationcache.Cache
	LocStore     *locationstore.Store
	FundRequests *fundrequeststore.Store
	IDs          *memberid.Generator
	Uploads      *uploads.Parser
	Signer       *filestore.Signer
	Notify       *notify.Service
	AuditLog     *auditlog.Logger
	ErrLog       *uierrors.ErrorLogger
	Log          *zap.Logger
}

// NewHandler wires the member stores around db. files receives uploaded
// documents; signer turns stored refs into readable URLs.
func NewHandler(
	db *mongo.Database,
	locs *locationcache.Cache,
	files filestore.Store,
	signer *filestore.Signer,
	notifier *notify.Service,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Members:      memberstore.New(db),
		Locations:    locs,
		LocStore:     locationstore.New(db),
		FundRequests: fundrequeststore.New(db),
		IDs:          memberid.New(locs, idcounterstore.New(db)),
		Uploads:      &uploads.Parser{Store: files},
		Signer:       signer,
		Notify:       notifier,
		AuditLog:     audit,
		ErrLog:       errLog,
		Log:          logger,
	}
}

// locationNames carries the display names of a member's address, which
// the list and detail views show instead of ids.
type locationNames struct {
	State    string `json:"state,omitempty"`
	District string `json:"district,omitempty"`
	Mandal   string `json:"mandal,omitempty"`
	Village  string `json:"village,omitempty"`
}

// memberView is a member as the API returns it: signed file URLs plus the
// names of its address locations.
type memberView struct {
	models.Member
	LocationNames locationNames `json:"locationNames"`
	Dependents    []memberView  `json:"dependents,omitempty"`
}

// view signs m's files and resolves its location names.
func (h *Handler) view(ctx context.Context, m models.Member) memberView {
	h.sign(ctx, &m)
	a := m.Address
	names := locationNames{
		State:    a.State,
		District: h.Locations.Name(ctx, a.District),
		Mandal:   h.Locations.Name(ctx, a.Mandal),
		Village:  h.Locations.Name(ctx, a.Village),
	}
	return memberView{Member: m, LocationNames: names}
}

// sign replaces every stored file ref on m with a readable URL.
func (h *Handler) sign(ctx context.Context, m *models.Member) {
	h.Signer.SignAll(ctx, m.FileRefs()...)
}
