// internal/app/features/admin/dashboard.go
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/mewsorg/mews/internal/app/store/queries/dashboard"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

// noMembers matches nothing; admins without a jurisdiction see zeroes.
var noMembers = bson.M{"_id": bson.M{"$in": bson.A{}}}

type dashboardStats struct {
	LocationName   string                `json:"locationName"`
	Villages       []dashboard.ChildStat `json:"villages"`
	Mandals        []dashboard.ChildStat `json:"mandals,omitempty"`
	Districts      []dashboard.ChildStat `json:"districts,omitempty"`
	Members        int64                 `json:"members"`
	Families       int64                 `json:"families"`
	PendingMembers int64                 `json:"pendingMembers"`
	NewMembers     int64                 `json:"newMembers"`
	Institutions   int64                 `json:"institutions"`
	SOSAlerts      int                   `json:"sosAlerts"`
	Funds          float64               `json:"funds"`
}

// statsKey identifies a principal's view. Role and location are part of
// it so a reassignment shows fresh numbers immediately.
func statsKey(p *auth.Principal) string {
	key := p.ID.Hex() + "|" + p.Role
	if p.AssignedLocation != nil {
		key += "|" + p.AssignedLocation.Hex()
	}
	return key
}

// memberFilter resolves p's member scope. ok is false when p has no
// jurisdiction at all.
func (h *Handler) memberFilter(ctx context.Context, p *auth.Principal) (bson.M, bool, error) {
	scope, err := authz.MemberScope(ctx, p, h.Locations)
	if errors.Is(err, authz.ErrNoScope) {
		return noMembers, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return scope.Filter(), true, nil
}

// ServeDashboardStats handles GET /api/admin/dashboard-stats.
func (h *Handler) ServeDashboardStats(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	key := statsKey(p)
	if v, ok := h.stats.Get(key); ok {
		jsonutil.OK(w, v)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	stats, err := h.dashboardStats(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard stats failed", err, "")
		return
	}
	h.stats.SetDefault(key, stats)
	jsonutil.OK(w, stats)
}

func (h *Handler) dashboardStats(ctx context.Context, p *auth.Principal) (dashboardStats, error) {
	stats := dashboardStats{LocationName: "All Locations", Villages: []dashboard.ChildStat{}}

	filter, scoped, err := h.memberFilter(ctx, p)
	if err != nil {
		return stats, err
	}

	var loc models.Location
	if p.AssignedLocation != nil {
		if loc, err = h.Locations.Get(ctx, *p.AssignedLocation); err == nil {
			stats.LocationName = loc.Name
		}
	}

	// Institutions carry a free-text address, so they are matched on the
	// names of the admin's location and its children.
	var children []models.Location
	var childField string
	names := []string{}
	if p.Role != models.RoleSuperAdmin && loc.Name != "" {
		names = append(names, loc.Name)
	}

	switch p.Role {
	case models.RoleMandalAdmin, models.RoleMunicipalityAdmin:
		children, err = h.Locations.ChildrenOfType(ctx, loc.ID, models.LocationVillage)
		childField = "address.village"
	case models.RoleDistrictAdmin:
		children, err = h.Locations.ChildrenOfType(ctx, loc.ID, models.LocationMandal)
		childField = "address.mandal"
		for _, c := range children {
			names = append(names, c.Name)
		}
	case models.RoleStateAdmin:
		children, err = h.Locations.ChildrenOfType(ctx, loc.ID, models.LocationDistrict)
		childField = "address.district"
		for _, c := range children {
			names = append(names, c.Name)
		}
	case models.RoleSuperAdmin:
		children, err = h.LocStore.List(ctx, models.LocationDistrict, nil)
		childField = "address.district"
	}
	if err != nil {
		return stats, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := h.Dashboard.MemberCounts(gctx, filter, h.now())
		stats.Members, stats.PendingMembers, stats.NewMembers = c.Total, c.Pending, c.New
		return err
	})
	g.Go(func() (err error) {
		stats.Families, err = h.Dashboard.FamilyCount(gctx, filter)
		return err
	})
	if scoped {
		g.Go(func() (err error) {
			stats.Institutions, err = h.Dashboard.InstitutionCount(gctx, names...)
			return err
		})
	}
	g.Go(func() (err error) {
		stats.Funds, err = h.Dashboard.TotalFunds(gctx)
		return err
	})
	var breakdown []dashboard.ChildStat
	if len(children) > 0 {
		g.Go(func() (err error) {
			breakdown, err = h.Dashboard.BreakdownByChild(gctx, children, childField)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	switch childField {
	case "address.village":
		stats.Villages = breakdown
	case "address.mandal":
		stats.Mandals = breakdown
	case "address.district":
		stats.Districts = breakdown
	}
	if stats.Villages == nil {
		stats.Villages = []dashboard.ChildStat{}
	}
	return stats, nil
}

// ServeAnalytics handles GET /api/admin/analytics.
func (h *Handler) ServeAnalytics(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	filter, _, err := h.memberFilter(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "analytics scope failed", err, "")
		return
	}
	a, err := h.Dashboard.Analytics(ctx, filter, h.now())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "analytics failed", err, "")
		return
	}
	jsonutil.OK(w, a)
}
