// internal/app/features/members/register.go
package members

import (
	"context"
	"errors"
	"net/http"

	"github.com/mewsorg/mews/internal/app/store/audit"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	msgRequired     = "Surname, name and mobile number are required"
	msgNoVillage    = "A valid present village is required"
	msgOutside      = "You can only register members within your jurisdiction"
	msgDuplicate    = "A member with this Aadhaar number is already registered"
	msgBadFamily    = "Invalid family members data"
	msgUploadFailed = "File upload failed"
)

// uploadError maps a Parse failure to a 400.
func (h *Handler) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *uploads.FieldError
	switch {
	case errors.Is(err, uploads.ErrNotMultipart):
		h.ErrLog.LogBadRequest(w, r, "member form not multipart", err, "Expected multipart/form-data")
	case errors.As(err, &fe):
		h.ErrLog.LogBadRequest(w, r, "member upload rejected", err, fe.Field+": "+fe.Err.Error())
	default:
		h.ErrLog.LogBadRequest(w, r, "member form parse failed", err, msgUploadFailed)
	}
}

// defaultVillage fills in a village admin's own village when the form
// leaves it out.
func defaultVillage(p *auth.Principal, ref string) string {
	if ref == "" && p != nil && p.Role == models.RoleVillageAdmin && p.AssignedLocation != nil {
		return p.AssignedLocation.Hex()
	}
	return ref
}

// HandleRegister handles POST /api/members.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	form, err := h.Uploads.Parse(w, r, uploads.MemberFields())
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	// Any rejection below must not leave orphaned files behind.
	kept := false
	defer func() {
		if !kept {
			h.Uploads.Discard(context.WithoutCancel(ctx), form)
		}
	}()

	m := memberFromForm(form)
	if m.Surname == "" || m.Name == "" || m.MobileNumber == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, msgRequired)
		return
	}

	family, err := familyFromForm(form)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad familyMembers", err, msgBadFamily)
		return
	}

	village, err := h.resolveVillage(ctx, defaultVillage(p, form.Get("presentVillage")))
	if errors.Is(err, errUnknownVillage) {
		jsonutil.Error(w, r, http.StatusBadRequest, msgNoVillage)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "resolve village failed", err, "")
		return
	}
	m.Address = addressFields(form, "present")
	placeIn(&m.Address, village)

	if ref := form.Get("permVillage"); ref != "" {
		perm := addressFields(form, "perm")
		if pv, err := h.resolveVillage(ctx, ref); err == nil {
			placeIn(&perm, pv)
		}
		m.PermanentAddress = &perm
	}

	if p != nil && p.Kind == models.KindUser {
		if err := authz.MemberJurisdiction(p, m.Address); err != nil {
			h.ErrLog.LogForbidden(w, r, "member registration outside jurisdiction", msgOutside)
			return
		}
	}

	if m.AadhaarNumber != "" {
		dup, err := h.Members.CheckDuplicate(ctx, "aadhaarNumber", m.AadhaarNumber)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "duplicate check failed", err, "")
			return
		}
		if dup {
			jsonutil.Error(w, r, http.StatusConflict, msgDuplicate)
			return
		}
	}

	m.VerificationStatus = models.MemberPending
	if p != nil && p.Role == models.RoleVillageAdmin {
		m.VerificationStatus = models.MemberApprovedVillage
	}
	m.FamilyMembers = family

	if m.MewsID, err = h.IDs.Generate(ctx, m.Address); err != nil {
		h.ErrLog.LogServerError(w, r, "generate mews id failed", err, "")
		return
	}

	m, err = h.Members.Create(ctx, m)
	if errors.Is(err, memberstore.ErrDuplicate) {
		jsonutil.Error(w, r, http.StatusConflict, msgDuplicate)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create member failed", err, "")
		return
	}
	kept = true

	deps := h.createDependents(ctx, &m)

	if n, err := h.Notify.NotifyAdminsOfRegistration(ctx, m); err != nil {
		h.Log.Warn("notify admins of registration failed", zap.String("member", m.ID.Hex()), zap.Error(err))
	} else {
		h.Log.Debug("registration notifications sent", zap.String("member", m.ID.Hex()), zap.Int("admins", n))
	}
	h.Notify.SendWelcome(m)

	if p != nil && p.Kind == models.KindUser {
		id := m.ID
		h.AuditLog.Admin(ctx, r, p, audit.ModuleMember, audit.ActionCreate, &id, "Registered member "+m.FullName()+" ("+m.MewsID+")")
	}

	v := h.view(ctx, m)
	for _, d := range deps {
		v.Dependents = append(v.Dependents, h.view(ctx, d))
	}
	jsonutil.Created(w, v)
}

// createDependents materializes each family entry as its own member and
// records the issued ids on the head's snapshot. Failures are logged and
// the entry skipped so the head's registration still stands.
func (h *Handler) createDependents(ctx context.Context, head *models.Member) []models.Member {
	if len(head.FamilyMembers) == 0 {
		return nil
	}
	var out []models.Member
	for i, fm := range head.FamilyMembers {
		dep := dependentOf(*head, fm)
		id, err := h.IDs.Generate(ctx, dep.Address)
		if err != nil {
			h.Log.Warn("dependent mews id failed", zap.String("head", head.ID.Hex()), zap.Error(err))
			continue
		}
		dep.MewsID = id
		dep, err = h.Members.Create(ctx, dep)
		if err != nil {
			h.Log.Warn("create dependent failed",
				zap.String("head", head.ID.Hex()),
				zap.String("relation", fm.Relation),
				zap.Error(err))
			continue
		}
		head.FamilyMembers[i].MewsID = dep.MewsID
		out = append(out, dep)
	}
	if len(out) > 0 {
		if err := h.Members.Update(ctx, head.ID, bson.M{"familyMembers": head.FamilyMembers}); err != nil {
			h.Log.Warn("record dependent ids failed", zap.String("head", head.ID.Hex()), zap.Error(err))
		}
	}
	return out
}
