// internal/app/system/authz/roles.go
package authz

import (
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var levels = map[string]int{
	models.RoleSuperAdmin:        5,
	models.RoleStateAdmin:        4,
	models.RoleDistrictAdmin:     3,
	models.RoleMandalAdmin:       2,
	models.RoleMunicipalityAdmin: 2,
	models.RoleVillageAdmin:      1,
}

// Level is the role's rank in the admin hierarchy. Non-admin roles are 0.
func Level(role string) int {
	return levels[role]
}

// CanManageRole reports whether creator outranks target.
func CanManageRole(creator, target string) bool {
	return Level(target) > 0 && Level(creator) > Level(target)
}

// SubordinateRoles lists the admin roles below role.
func SubordinateRoles(role string) []string {
	mine := Level(role)
	var out []string
	for _, r := range models.AdminRoles {
		if l := Level(r); l > 0 && l < mine {
			out = append(out, r)
		}
	}
	return out
}

// LocationTypeForRole is the location type an admin of role is assigned to.
// SUPER_ADMIN has none.
func LocationTypeForRole(role string) string {
	switch role {
	case models.RoleStateAdmin:
		return models.LocationState
	case models.RoleDistrictAdmin:
		return models.LocationDistrict
	case models.RoleMandalAdmin:
		return models.LocationMandal
	case models.RoleMunicipalityAdmin:
		return models.LocationMunicipality
	case models.RoleVillageAdmin:
		return models.LocationVillage
	}
	return ""
}

// InHierarchy reports whether target sits below the creator's location.
// A creator without a location (super admin) governs everything.
func InHierarchy(creatorLoc *primitive.ObjectID, target models.Location) bool {
	if creatorLoc == nil {
		return true
	}
	return target.HasAncestor(*creatorLoc)
}
