// internal/app/features/admin/settings.go
package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/mewsorg/mews/internal/app/store/audit"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
)

const msgNoLocation = "User has no assigned location"

// settingsView is the hierarchy around the admin's location merged with
// whatever has been saved for it.
type settingsView struct {
	VillageName string `json:"villageName"`
	Mandal      string `json:"mandal"`
	District    string `json:"district"`
	Email       string `json:"email"`
	models.VillageSettings
}

type settingsRequest struct {
	ContactPhone  string `json:"contactPhone"`
	OfficeAddress string `json:"officeAddress"`
	MeetingDay    string `json:"meetingDay"`
	Notes         string `json:"notes"`
}

// hierarchy names the village, mandal and district at or above loc.
func hierarchy(loc models.Location) (village, mandal, district string) {
	switch loc.Type {
	case models.LocationVillage:
		village = loc.Name
	case models.LocationMandal:
		mandal = loc.Name
	case models.LocationDistrict:
		district = loc.Name
	}
	if a, ok := loc.AncestorOfType(models.LocationMandal); ok {
		mandal = a.Name
	}
	if a, ok := loc.AncestorOfType(models.LocationDistrict); ok {
		district = a.Name
	}
	return village, mandal, district
}

func (h *Handler) settingsFor(ctx context.Context, p *auth.Principal) (settingsView, error) {
	loc, err := h.Locations.Get(ctx, *p.AssignedLocation)
	if err != nil {
		return settingsView{}, err
	}
	vs, err := h.Settings.Get(ctx, loc.ID)
	if err != nil {
		return settingsView{}, err
	}
	v := settingsView{Email: p.Email, VillageSettings: vs}
	v.VillageName, v.Mandal, v.District = hierarchy(loc)
	return v, nil
}

// ServeSettings handles GET /api/admin/settings.
func (h *Handler) ServeSettings(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	if p.AssignedLocation == nil {
		jsonutil.Error(w, r, http.StatusBadRequest, msgNoLocation)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, err := h.settingsFor(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load village settings failed", err, "")
		return
	}
	jsonutil.OK(w, v)
}

// HandleSaveSettings handles PUT /api/admin/settings.
func (h *Handler) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	if p.AssignedLocation == nil {
		jsonutil.Error(w, r, http.StatusBadRequest, msgNoLocation)
		return
	}
	var req settingsRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad settings body", err, "Invalid settings data")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id := p.ID
	err := h.Settings.Save(ctx, *p.AssignedLocation, models.VillageSettings{
		ContactPhone:  strings.TrimSpace(req.ContactPhone),
		OfficeAddress: strings.TrimSpace(req.OfficeAddress),
		MeetingDay:    strings.TrimSpace(req.MeetingDay),
		Notes:         strings.TrimSpace(req.Notes),
		UpdatedByID:   &id,
		UpdatedByName: p.Name,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "save village settings failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, p, audit.ModuleSettings, audit.ActionUpdate, p.AssignedLocation, "Updated village settings")

	v, err := h.settingsFor(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "reload village settings failed", err, "")
		return
	}
	jsonutil.OK(w, v)
}
