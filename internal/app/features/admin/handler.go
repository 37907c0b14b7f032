// internal/app/features/admin/handler.go
package admin

import (
	"time"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/store/queries/dashboard"
	settingsstore "github.com/mewsorg/mews/internal/app/store/settings"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/locationcache"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// StatsTTL is how long a principal's dashboard numbers are reused.
const StatsTTL = time.Minute

// Handler serves the admin dashboard, village settings and the management
// of subordinate admins.
type Handler struct {
	Users     *userstore.Store
	Members   *memberstore.Store
	LocStore  *locationstore.Store
	Locations *locationcache.Cache
	Dashboard *dashboard.Queries
	Settings  *settingsstore.Store
	Notify    *notify.Service
	AuditLog  *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger

	stats *cache.Cache
	now   func() time.Time
}

func NewHandler(
	db *mongo.Database,
	locs *locationcache.Cache,
	notifier *notify.Service,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:     userstore.New(db),
		Members:   memberstore.New(db),
		LocStore:  locationstore.New(db),
		Locations: locs,
		Dashboard: dashboard.New(db),
		Settings:  settingsstore.New(db),
		Notify:    notifier,
		AuditLog:  audit,
		ErrLog:    errLog,
		Log:       logger,
		stats:     cache.New(StatsTTL, 5*time.Minute),
		now:       time.Now,
	}
}

// FlushStats drops every cached dashboard. Tests and admin tooling use it
// after bulk changes.
func (h *Handler) FlushStats() { h.stats.Flush() }
