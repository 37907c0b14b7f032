// internal/domain/models/roles.go
package models

// Roles. Admin roles live on User documents; MEMBER and the admin roles
// promoted from members also appear on Member documents.
const (
	RoleSuperAdmin        = "SUPER_ADMIN"
	RoleStateAdmin        = "STATE_ADMIN"
	RoleDistrictAdmin     = "DISTRICT_ADMIN"
	RoleMunicipalityAdmin = "MUNICIPALITY_ADMIN"
	RoleMandalAdmin       = "MANDAL_ADMIN"
	RoleVillageAdmin      = "VILLAGE_ADMIN"
	RoleInstitution       = "INSTITUTION"
	RoleMember            = "MEMBER"
)

// AdminRoles lists every administrative role, highest tier first.
var AdminRoles = []string{
	RoleSuperAdmin,
	RoleStateAdmin,
	RoleDistrictAdmin,
	RoleMunicipalityAdmin,
	RoleMandalAdmin,
	RoleVillageAdmin,
}

// IsAdminRole reports whether role is one of the administrative tiers.
func IsAdminRole(role string) bool {
	for _, r := range AdminRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Principal kinds identify which collection an authenticated id belongs to.
const (
	KindUser        = "user"
	KindMember      = "member"
	KindInstitution = "institution"
)
