// internal/app/system/authz/authz.go
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNoScope means the principal is not allowed to see any members,
	// usually an admin without an assigned location.
	ErrNoScope = errors.New("no member scope")
	// ErrOutsideJurisdiction means a write targets a location the admin does not govern.
	ErrOutsideJurisdiction = errors.New("outside jurisdiction")
)

// LocationSource is the slice of the locations store that scoping needs.
type LocationSource interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Location, error)
	SameNameSiblings(ctx context.Context, loc models.Location) ([]models.Location, error)
	ChildrenOfType(ctx context.Context, parent primitive.ObjectID, typ string) ([]models.Location, error)
}

// Scope restricts which members a principal can see. The zero Scope
// matches nothing; All matches everything.
type Scope struct {
	All   bool
	Field string
	IDs   []primitive.ObjectID

	// Self is set for member principals, who see themselves and their family.
	Self *primitive.ObjectID
}

// Filter renders the scope as a members query.
func (s Scope) Filter() bson.M {
	switch {
	case s.All:
		return bson.M{}
	case s.Self != nil:
		return bson.M{"$or": bson.A{
			bson.M{"_id": *s.Self},
			bson.M{"headOfFamily": *s.Self},
		}}
	case s.Field != "" && len(s.IDs) == 1:
		return bson.M{s.Field: s.IDs[0]}
	case s.Field != "" && len(s.IDs) > 0:
		return bson.M{s.Field: bson.M{"$in": s.IDs}}
	default:
		return bson.M{"_id": primitive.NilObjectID}
	}
}

// Contains reports whether a member with address addr falls inside the scope.
func (s Scope) Contains(addr models.Address) bool {
	if s.All {
		return true
	}
	var ref *primitive.ObjectID
	switch s.Field {
	case "address.village":
		ref = addr.Village
	case "address.mandal":
		ref = addr.Mandal
	case "address.district":
		ref = addr.District
	}
	if ref == nil {
		return false
	}
	for _, id := range s.IDs {
		if id == *ref {
			return true
		}
	}
	return false
}

// MemberScope works out which members p may see.
//
//   - VILLAGE_ADMIN: the assigned village plus same-name villages under the same mandal
//   - MANDAL_ADMIN, MUNICIPALITY_ADMIN: address.mandal
//   - DISTRICT_ADMIN: address.district
//   - STATE_ADMIN: address.district within the state's districts
//   - SUPER_ADMIN: everything
//   - MEMBER: self and dependents
func MemberScope(ctx context.Context, p *auth.Principal, locs LocationSource) (Scope, error) {
	if p == nil {
		return Scope{}, ErrNoScope
	}
	switch p.Role {
	case models.RoleSuperAdmin:
		return Scope{All: true}, nil
	case models.RoleMember:
		id := p.ID
		if p.MemberID != nil {
			id = *p.MemberID
		}
		return Scope{Self: &id}, nil
	}
	if !models.IsAdminRole(p.Role) || p.AssignedLocation == nil {
		return Scope{}, ErrNoScope
	}
	loc := *p.AssignedLocation

	switch p.Role {
	case models.RoleVillageAdmin:
		ids := []primitive.ObjectID{loc}
		assigned, err := locs.Get(ctx, loc)
		if err != nil {
			// Fall back to the bare id; an unknown location still scopes tightly.
			return Scope{Field: "address.village", IDs: ids}, nil
		}
		siblings, err := locs.SameNameSiblings(ctx, assigned)
		if err != nil {
			return Scope{}, fmt.Errorf("same-name villages: %w", err)
		}
		for _, s := range siblings {
			if s.ID != loc {
				ids = append(ids, s.ID)
			}
		}
		return Scope{Field: "address.village", IDs: ids}, nil
	case models.RoleMandalAdmin, models.RoleMunicipalityAdmin:
		return Scope{Field: "address.mandal", IDs: []primitive.ObjectID{loc}}, nil
	case models.RoleDistrictAdmin:
		return Scope{Field: "address.district", IDs: []primitive.ObjectID{loc}}, nil
	case models.RoleStateAdmin:
		districts, err := locs.ChildrenOfType(ctx, loc, models.LocationDistrict)
		if err != nil {
			return Scope{}, fmt.Errorf("state districts: %w", err)
		}
		ids := make([]primitive.ObjectID, 0, len(districts))
		for _, d := range districts {
			ids = append(ids, d.ID)
		}
		return Scope{Field: "address.district", IDs: ids}, nil
	}
	return Scope{}, ErrNoScope
}

// CanAccessMember reports whether p may read m under scope.
func CanAccessMember(p *auth.Principal, scope Scope, m models.Member) bool {
	if p == nil {
		return false
	}
	if scope.Self != nil {
		return m.ID == *scope.Self || (m.HeadOfFamily != nil && *m.HeadOfFamily == *scope.Self)
	}
	return scope.Contains(m.Address)
}

// MemberJurisdiction checks that an admin registering or editing a member
// at addr governs that address. Village, mandal and district admins are
// held to their own location; higher tiers pass.
func MemberJurisdiction(p *auth.Principal, addr models.Address) error {
	if p == nil || p.AssignedLocation == nil {
		return nil
	}
	loc := *p.AssignedLocation
	var ref *primitive.ObjectID
	switch p.Role {
	case models.RoleVillageAdmin:
		ref = addr.Village
	case models.RoleMandalAdmin, models.RoleMunicipalityAdmin:
		ref = addr.Mandal
	case models.RoleDistrictAdmin:
		ref = addr.District
	default:
		return nil
	}
	if ref == nil || *ref != loc {
		return ErrOutsideJurisdiction
	}
	return nil
}
