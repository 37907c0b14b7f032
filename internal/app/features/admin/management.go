// internal/app/features/admin/management.go
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mewsorg/mews/internal/app/store/audit"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ManagerRoles may create and manage subordinate admins.
var ManagerRoles = []string{
	models.RoleSuperAdmin,
	models.RoleStateAdmin,
	models.RoleDistrictAdmin,
	models.RoleMandalAdmin,
}

const (
	msgUserNotFound   = "User not found"
	msgMemberNotFound = "Member not found"
	msgBadLocation    = "Invalid location"
	msgJurisdiction   = "Invalid location assignment. You can only assign locations within your jurisdiction."
	msgMoveOutside    = "Cannot move admin to a location outside your jurisdiction."
	msgCannotManage   = "You do not have permission to manage this user."
	msgCannotDelete   = "You do not have permission to delete this user."
	msgUsernameTaken  = "Username already exists"
)

var errLocationType = errors.New("location type does not match role")

type memberSummary struct {
	ID           primitive.ObjectID `json:"_id"`
	Name         string             `json:"name"`
	Surname      string             `json:"surname"`
	MobileNumber string             `json:"mobileNumber"`
	PhotoURL     string             `json:"photoUrl,omitempty"`
}

// adminView is an admin login with its location and, for promoted members,
// who it belongs to.
type adminView struct {
	models.User
	LocationName string         `json:"locationName,omitempty"`
	LocationType string         `json:"locationType,omitempty"`
	Member       *memberSummary `json:"member,omitempty"`
}

func (h *Handler) adminView(ctx context.Context, u models.User) adminView {
	v := adminView{User: u}
	if u.AssignedLocation != nil {
		if loc, err := h.Locations.Get(ctx, *u.AssignedLocation); err == nil {
			v.LocationName, v.LocationType = loc.Name, loc.Type
		}
	}
	if u.MemberID != nil {
		if m, err := h.Members.Get(ctx, *u.MemberID); err == nil {
			v.Member = &memberSummary{
				ID:           m.ID,
				Name:         m.Name,
				Surname:      m.Surname,
				MobileNumber: m.MobileNumber,
				PhotoURL:     m.PhotoURL,
			}
		}
	}
	return v
}

// assignable loads the location an admin of role would be placed at and
// checks it against the creator's jurisdiction.
func (h *Handler) assignable(ctx context.Context, p *auth.Principal, role, ref string) (models.Location, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(ref))
	if err != nil {
		return models.Location{}, locationstore.ErrNotFound
	}
	loc, err := h.LocStore.Get(ctx, id)
	if err != nil {
		return models.Location{}, err
	}
	if loc.Type != authz.LocationTypeForRole(role) {
		return loc, errLocationType
	}
	if !governs(p, loc) {
		return loc, authz.ErrOutsideJurisdiction
	}
	return loc, nil
}

// governs reports whether p's jurisdiction covers loc. Only a super admin
// governs everything without an assigned location.
func governs(p *auth.Principal, loc models.Location) bool {
	if p.AssignedLocation == nil {
		return p.Role == models.RoleSuperAdmin
	}
	return authz.InHierarchy(p.AssignedLocation, loc)
}

// locationError writes the response for an assignable failure.
func (h *Handler) locationError(w http.ResponseWriter, r *http.Request, err error, role, outsideMsg string) {
	switch {
	case errors.Is(err, locationstore.ErrNotFound):
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadLocation)
	case errors.Is(err, errLocationType):
		jsonutil.Error(w, r, http.StatusBadRequest,
			fmt.Sprintf("A %s must be assigned to a %s", role, authz.LocationTypeForRole(role)))
	case errors.Is(err, authz.ErrOutsideJurisdiction):
		h.ErrLog.LogForbidden(w, r, "admin location outside jurisdiction", outsideMsg)
	default:
		h.ErrLog.LogServerError(w, r, "load admin location failed", err, "")
	}
}

// ServeManagement handles GET /api/admin/management.
func (h *Handler) ServeManagement(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	roles := authz.SubordinateRoles(p.Role)
	if len(roles) == 0 {
		jsonutil.OK(w, []adminView{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var locs []primitive.ObjectID
	if p.AssignedLocation != nil {
		ids, err := h.LocStore.DescendantIDs(ctx, *p.AssignedLocation, locationstore.MaxDescendantDepth)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "descendant locations failed", err, "")
			return
		}
		if len(ids) == 0 {
			jsonutil.OK(w, []adminView{})
			return
		}
		locs = ids
	} else if p.Role != models.RoleSuperAdmin {
		jsonutil.OK(w, []adminView{})
		return
	}

	users, err := h.Users.ListByLocations(ctx, locs, roles)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list admins failed", err, "")
		return
	}
	out := make([]adminView, 0, len(users))
	for _, u := range users {
		if u.ID == p.ID {
			continue
		}
		out = append(out, h.adminView(ctx, u))
	}
	jsonutil.OK(w, out)
}

type createRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Email            string `json:"email"`
	MobileNumber     string `json:"mobileNumber"`
	Role             string `json:"role"`
	AssignedLocation string `json:"assignedLocation"`
	MemberID         string `json:"memberId"`
}

// HandleCreate handles POST /api/admin/management. With a memberId the
// member is promoted instead of a fresh login being created.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	var req createRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad admin body", err, "Invalid admin data")
		return
	}
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	promote := strings.TrimSpace(req.MemberID) != ""

	if !authz.CanManageRole(p.Role, req.Role) {
		msg := fmt.Sprintf("You cannot create a %s. Access Denied.", req.Role)
		if promote {
			msg = fmt.Sprintf("You cannot assign the role %s. Access Denied.", req.Role)
		}
		h.ErrLog.LogForbidden(w, r, "admin role above creator", msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	loc, err := h.assignable(ctx, p, req.Role, req.AssignedLocation)
	if err != nil {
		h.locationError(w, r, err, req.Role, msgJurisdiction)
		return
	}

	if promote {
		h.promote(ctx, w, r, p, req, loc)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Username and password are required")
		return
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.Users.GetByLogin(ctx, req.Username); err == nil {
		jsonutil.Error(w, r, http.StatusConflict, msgUsernameTaken)
		return
	} else if !errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.LogServerError(w, r, "username lookup failed", err, "")
		return
	}

	locID := loc.ID
	u, err := h.Users.Create(ctx, models.User{
		Username:         req.Username,
		Email:            req.Email,
		MobileNumber:     authutil.NormalizeMobile(req.MobileNumber),
		Role:             req.Role,
		AssignedLocation: &locID,
	}, req.Password)
	if errors.Is(err, userstore.ErrDuplicate) {
		jsonutil.Error(w, r, http.StatusConflict, msgUsernameTaken)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create admin failed", err, "")
		return
	}

	h.Log.Info("admin created",
		zap.String("username", u.Username),
		zap.String("role", u.Role),
		zap.String("location", loc.Name),
		zap.String("by", p.ID.Hex()))
	id := u.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleAdmin, audit.ActionCreate, &id,
		fmt.Sprintf("Created %s %s for %s", u.Role, u.Username, loc.Name))

	jsonutil.Created(w, map[string]any{
		"_id":              u.ID,
		"username":         u.Username,
		"role":             u.Role,
		"assignedLocation": u.AssignedLocation,
	})
}

// promote turns a member into an admin. The member's mobile number is the
// username; an existing login under it is reassigned rather than duplicated.
func (h *Handler) promote(ctx context.Context, w http.ResponseWriter, r *http.Request, p *auth.Principal, req createRequest, loc models.Location) {
	memberID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.MemberID))
	if err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid member id")
		return
	}
	m, err := h.Members.Get(ctx, memberID)
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgMemberNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load member failed", err, "")
		return
	}
	if m.Role != "" && m.Role != models.RoleMember {
		jsonutil.Error(w, r, http.StatusBadRequest, fmt.Sprintf(
			"This member is already assigned as a %s. Multiple admin roles are not allowed.",
			strings.Replace(m.Role, "_", " ", 1)))
		return
	}

	locID := loc.ID
	u, err := h.Users.GetByLogin(ctx, m.MobileNumber)
	switch {
	case err == nil:
		if authz.Level(u.Role) >= authz.Level(p.Role) {
			h.ErrLog.LogForbidden(w, r, "promotion over higher-ranked login", "Cannot modify a member with equal or higher rank.")
			return
		}
		u, err = h.Users.Assign(ctx, u.ID, req.Role, &locID, &m.ID)
	case errors.Is(err, userstore.ErrNotFound):
		email := m.Email
		if email == "" {
			email = m.MobileNumber + "@mews.local"
		}
		u, err = h.Users.Create(ctx, models.User{
			Username:         m.MobileNumber,
			Email:            email,
			MobileNumber:     m.MobileNumber,
			Role:             req.Role,
			AssignedLocation: &locID,
			MemberID:         &m.ID,
		}, authutil.PromotionPassword(m.MobileNumber))
	}
	if errors.Is(err, userstore.ErrDuplicate) {
		jsonutil.Error(w, r, http.StatusConflict, msgUsernameTaken)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "promote member login failed", err, "")
		return
	}

	if err := h.Members.SetRole(ctx, m.ID, req.Role, &locID); err != nil {
		h.ErrLog.LogServerError(w, r, "set member role failed", err, "")
		return
	}
	m.Role, m.AssignedLocation = req.Role, &locID

	h.Notify.SendPromotion(m, u, loc.Name)
	h.AuditLog.Admin(ctx, r, p, audit.ModuleAdmin, audit.ActionPromote, &m.ID,
		fmt.Sprintf("Promoted %s to %s for %s", m.FullName(), req.Role, loc.Name))

	jsonutil.OK(w, map[string]any{
		"message": "Member promoted successfully",
		"member": map[string]any{
			"_id":              m.ID,
			"name":             m.Name,
			"role":             m.Role,
			"assignedLocation": m.AssignedLocation,
		},
		"user": map[string]any{
			"username": u.Username,
			"role":     u.Role,
		},
	})
}

// loadManaged fetches the admin named in the URL and checks that p outranks
// it and governs its location.
func (h *Handler) loadManaged(ctx context.Context, w http.ResponseWriter, r *http.Request, p *auth.Principal, deny string) (models.User, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid user id")
		return models.User{}, false
	}
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgUserNotFound)
		return models.User{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load admin failed", err, "")
		return models.User{}, false
	}
	if !authz.CanManageRole(p.Role, u.Role) {
		h.ErrLog.LogForbidden(w, r, "admin outranks manager", deny)
		return models.User{}, false
	}
	if u.AssignedLocation != nil {
		loc, err := h.Locations.Get(ctx, *u.AssignedLocation)
		if err == nil && !governs(p, loc) {
			h.ErrLog.LogForbidden(w, r, "admin outside manager jurisdiction", deny)
			return models.User{}, false
		}
	}
	return u, true
}

type updateRequest struct {
	Email            *string `json:"email"`
	MobileNumber     *string `json:"mobileNumber"`
	Password         *string `json:"password"`
	IsActive         *bool   `json:"isActive"`
	AssignedLocation *string `json:"assignedLocation"`
}

// HandleUpdate handles PUT /api/admin/management/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	var req updateRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad admin update body", err, "Invalid admin data")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.loadManaged(ctx, w, r, p, msgCannotManage)
	if !ok {
		return
	}

	var upd userstore.Update
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		upd.Email = req.Email
	}
	if req.MobileNumber != nil && strings.TrimSpace(*req.MobileNumber) != "" {
		mobile := authutil.NormalizeMobile(*req.MobileNumber)
		upd.MobileNumber = &mobile
	}
	if req.Password != nil && *req.Password != "" {
		if err := authutil.ValidatePassword(*req.Password); err != nil {
			jsonutil.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd.Password = req.Password
	}
	upd.IsActive = req.IsActive

	if req.AssignedLocation != nil && *req.AssignedLocation != "" &&
		(u.AssignedLocation == nil || *req.AssignedLocation != u.AssignedLocation.Hex()) {
		loc, err := h.assignable(ctx, p, u.Role, *req.AssignedLocation)
		if err != nil {
			h.locationError(w, r, err, u.Role, msgMoveOutside)
			return
		}
		if err := h.Users.SetAssignedLocation(ctx, u.ID, loc.ID); err != nil {
			h.ErrLog.LogServerError(w, r, "move admin failed", err, "")
			return
		}
		if u.MemberID != nil {
			locID := loc.ID
			if err := h.Members.SetRole(ctx, *u.MemberID, u.Role, &locID); err != nil && !errors.Is(err, memberstore.ErrNotFound) {
				h.Log.Warn("move promoted member failed", zap.String("member", u.MemberID.Hex()), zap.Error(err))
			}
		}
	}

	updated, err := h.Users.Update(ctx, u.ID, upd)
	if errors.Is(err, userstore.ErrDuplicate) {
		jsonutil.Error(w, r, http.StatusConflict, "Mobile number already in use")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update admin failed", err, "")
		return
	}

	id := u.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleAdmin, audit.ActionUpdate, &id, "Updated "+updated.Role+" "+updated.Username)
	jsonutil.OK(w, h.adminView(ctx, updated))
}

// HandleDelete handles DELETE /api/admin/management/{id}. A promoted
// member goes back to being a plain member.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.loadManaged(ctx, w, r, p, msgCannotDelete)
	if !ok {
		return
	}
	if err := h.Users.Delete(ctx, u.ID); err != nil && !errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.LogServerError(w, r, "delete admin failed", err, "")
		return
	}
	if u.MemberID != nil {
		if err := h.Members.SetRole(ctx, *u.MemberID, models.RoleMember, nil); err != nil && !errors.Is(err, memberstore.ErrNotFound) {
			h.Log.Warn("reset promoted member failed", zap.String("member", u.MemberID.Hex()), zap.Error(err))
		}
	}

	id := u.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleAdmin, audit.ActionDelete, &id, "Removed "+u.Role+" "+u.Username)
	jsonutil.Message(w, "User removed")
}

// ServeChildLocations handles GET /api/admin/management/locations. Without
// ?parent it lists the children of the admin's own location (states for a
// super admin).
func (h *Handler) ServeChildLocations(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var (
		locs []models.Location
		err  error
	)
	switch ref := r.URL.Query().Get("parent"); {
	case ref != "":
		parent, perr := primitive.ObjectIDFromHex(ref)
		if perr != nil {
			jsonutil.Error(w, r, http.StatusBadRequest, "Invalid parent")
			return
		}
		if p.AssignedLocation != nil && parent != *p.AssignedLocation {
			loc, gerr := h.Locations.Get(ctx, parent)
			if gerr != nil || !governs(p, loc) {
				h.ErrLog.LogForbidden(w, r, "child locations outside jurisdiction", msgJurisdiction)
				return
			}
		}
		locs, err = h.LocStore.Children(ctx, parent)
	case p.AssignedLocation != nil:
		locs, err = h.LocStore.Children(ctx, *p.AssignedLocation)
	default:
		locs, err = h.LocStore.List(ctx, models.LocationState, nil)
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "child locations failed", err, "")
		return
	}
	jsonutil.OK(w, locs)
}

type searchRequest struct {
	MobileNumber string `json:"mobileNumber"`
}

// HandleSearchMember handles POST /api/admin/management/search-member,
// looking a member up by mobile number ahead of a promotion.
func (h *Handler) HandleSearchMember(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad search body", err, "Invalid request body")
		return
	}
	mobile := authutil.NormalizeMobile(req.MobileNumber)
	if mobile == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Mobile number is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.FindByMobile(ctx, mobile)
	if errors.Is(err, memberstore.ErrNotFound) {
		jsonutil.Error(w, r, http.StatusNotFound, msgMemberNotFound)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "search member failed", err, "")
		return
	}

	a := m.Address
	jsonutil.OK(w, map[string]any{
		"_id":              m.ID,
		"name":             m.Name,
		"surname":          m.Surname,
		"mobileNumber":     m.MobileNumber,
		"email":            m.Email,
		"role":             m.Role,
		"assignedLocation": m.AssignedLocation,
		"address": map[string]any{
			"village":  a.Village,
			"mandal":   a.Mandal,
			"district": a.District,
			"state":    a.State,
			"names": map[string]string{
				"village":  h.Locations.Name(ctx, a.Village),
				"mandal":   h.Locations.Name(ctx, a.Mandal),
				"district": h.Locations.Name(ctx, a.District),
			},
		},
	})
}
