// internal/app/features/members/list.go
package members

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/memberfilter"
	"github.com/mewsorg/mews/internal/app/system/paging"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	msgNotFound      = "Member not found"
	msgBadID         = "Invalid member id"
	msgNotAuthorized = "Not authorized to access this member"
)

// ServeList handles GET /api/members. Results are limited to the caller's
// jurisdiction and paged by name; cursors travel in response headers.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	filter, err := memberfilter.Parse(r.URL.Query())
	if err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid headOfFamily value")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	scope, err := authz.MemberScope(ctx, p, h.Locations)
	if errors.Is(err, authz.ErrNoScope) {
		paging.WriteHeaders(w, paging.Result{}, "", "")
		jsonutil.OK(w, []memberView{})
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "member scope failed", err, "")
		return
	}

	before, after := paging.Params(r)
	rows, res, err := h.Members.List(ctx, memberfilter.And(scope.Filter(), filter), before, after)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list members failed", err, "")
		return
	}

	prev, next := paging.BuildCursors(rows,
		func(m models.Member) string { return m.NameCI },
		func(m models.Member) primitive.ObjectID { return m.ID })
	paging.WriteHeaders(w, res, prev, next)

	out := make([]memberView, 0, len(rows))
	for _, m := range rows {
		out = append(out, h.view(ctx, m))
	}
	jsonutil.OK(w, out)
}

// loadInScope fetches the member named by the {id} URL parameter and checks
// that the caller may see it. On failure the response has been written.
func (h *Handler) loadInScope(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Member, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadID)
		return models.Member{}, false
	}
	m, err := h.Members.Get(ctx, id)
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return models.Member{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "get member failed", err, "")
		return models.Member{}, false
	}

	p, _ := auth.CurrentPrincipal(r)
	scope, err := authz.MemberScope(ctx, p, h.Locations)
	if err != nil && !errors.Is(err, authz.ErrNoScope) {
		h.ErrLog.LogServerError(w, r, "member scope failed", err, "")
		return models.Member{}, false
	}
	if err != nil || !authz.CanAccessMember(p, scope, m) {
		h.ErrLog.LogForbidden(w, r, "member outside scope", msgNotAuthorized)
		return models.Member{}, false
	}
	return m, true
}

// ServeGet handles GET /api/members/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, ok := h.loadInScope(ctx, w, r)
	if !ok {
		return
	}
	deps, err := h.Members.Dependents(ctx, m.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load dependents failed", err, "")
		return
	}
	v := h.view(ctx, m)
	for _, d := range deps {
		v.Dependents = append(v.Dependents, h.view(ctx, d))
	}
	jsonutil.OK(w, v)
}
