// internal/app/features/members/review.go
package members

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mewsorg/mews/internal/app/store/audit"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.uber.org/zap"
)

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func validStatus(s string) bool {
	for _, v := range models.MemberStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// HandleStatus handles PUT /api/members/{id}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad status body", err, "Invalid request body")
		return
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if !validStatus(req.Status) {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, ok := h.loadInScope(ctx, w, r)
	if !ok {
		return
	}
	p, _ := auth.CurrentPrincipal(r)

	updated, err := h.Members.UpdateStatus(ctx, m.ID, req.Status, p.ID, strings.TrimSpace(req.Notes))
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update member status failed", err, "")
		return
	}

	if err := h.Notify.NotifyMemberStatus(ctx, updated, req.Notes); err != nil {
		h.Log.Warn("status notification failed", zap.String("member", m.ID.Hex()), zap.Error(err))
	}
	id := m.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleMember, audit.ActionStatus, &id,
		m.FullName()+": "+m.VerificationStatus+" -> "+updated.VerificationStatus)

	jsonutil.OK(w, h.view(ctx, updated))
}

// HandleUpdate handles PUT /api/members/{id}. Only the fields present in
// the multipart form change; newly uploaded files replace the stored ones.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	m, ok := h.loadInScope(ctx, w, r)
	if !ok {
		return
	}
	p, _ := auth.CurrentPrincipal(r)

	form, err := h.Uploads.Parse(w, r, uploads.MemberFields())
	if err != nil {
		h.uploadError(w, r, err)
		return
	}
	kept := false
	defer func() {
		if !kept {
			h.Uploads.Discard(context.WithoutCancel(ctx), form)
		}
	}()

	set := updateSet(form)

	if _, moved := form.Values["presentVillage"]; moved {
		village, err := h.resolveVillage(ctx, form.Get("presentVillage"))
		if errors.Is(err, errUnknownVillage) {
			jsonutil.Error(w, r, http.StatusBadRequest, msgNoVillage)
			return
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "resolve village failed", err, "")
			return
		}
		addr := m.Address
		placeIn(&addr, village)
		if err := authz.MemberJurisdiction(p, addr); err != nil {
			h.ErrLog.LogForbidden(w, r, "member moved outside jurisdiction", msgOutside)
			return
		}
		set["address.village"] = addr.Village
		set["address.mandal"] = addr.Mandal
		set["address.district"] = addr.District
		set["address.state"] = addr.State
	}

	if _, ok := form.Values["familyMembers"]; ok {
		family, err := familyFromForm(form)
		if err != nil {
			h.ErrLog.LogBadRequest(w, r, "bad familyMembers", err, msgBadFamily)
			return
		}
		set["familyMembers"] = family
	}

	if v, ok := set["aadhaarNumber"].(string); ok && v != "" && v != m.AadhaarNumber {
		dup, err := h.Members.CheckDuplicate(ctx, "aadhaarNumber", v)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "duplicate check failed", err, "")
			return
		}
		if dup {
			jsonutil.Error(w, r, http.StatusConflict, msgDuplicate)
			return
		}
	}

	err = h.Members.Update(ctx, m.ID, set)
	if errors.Is(err, memberstore.ErrDuplicate) {
		jsonutil.Error(w, r, http.StatusConflict, msgDuplicate)
		return
	}
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update member failed", err, "")
		return
	}
	kept = true

	updated, err := h.Members.Get(ctx, m.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "reload member failed", err, "")
		return
	}
	id := m.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleMember, audit.ActionUpdate, &id, "Updated member "+updated.FullName())
	jsonutil.OK(w, h.view(ctx, updated))
}

// HandleDelete handles DELETE /api/members/{id}. Dependents go with the head.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, ok := h.loadInScope(ctx, w, r)
	if !ok {
		return
	}
	p, _ := auth.CurrentPrincipal(r)

	n, err := h.Members.Delete(ctx, m.ID)
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete member failed", err, "")
		return
	}

	id := m.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleMember, audit.ActionDelete, &id, "Deleted member "+m.FullName())
	jsonutil.OK(w, map[string]any{"message": "Member removed", "deleted": n})
}
