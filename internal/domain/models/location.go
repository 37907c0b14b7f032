// internal/domain/models/location.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location types, outermost first.
const (
	LocationState        = "STATE"
	LocationDistrict     = "DISTRICT"
	LocationMandal       = "MANDAL"
	LocationMunicipality = "MUNICIPALITY"
	LocationVillage      = "VILLAGE"
)

// LocationTypes lists the valid location types.
var LocationTypes = []string{
	LocationState,
	LocationDistrict,
	LocationMandal,
	LocationMunicipality,
	LocationVillage,
}

// IsLocationType reports whether t is a known location type.
func IsLocationType(t string) bool {
	for _, v := range LocationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Ancestor is one hop of a location's materialized path.
type Ancestor struct {
	LocationID primitive.ObjectID `bson:"locationId" json:"locationId"`
	Name       string             `bson:"name" json:"name"`
	Type       string             `bson:"type" json:"type"`
}

// Location is a node in the state > district > mandal/municipality > village tree.
// Ancestors is ordered from the root (state) down to the direct parent.
type Location struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Name      string              `bson:"name" json:"name"`
	NameCI    string              `bson:"name_ci" json:"-"`
	Pincode   string              `bson:"pincode" json:"pincode"`
	Type      string              `bson:"type" json:"type"`
	Parent    *primitive.ObjectID `bson:"parent" json:"parent"`
	Ancestors []Ancestor          `bson:"ancestors" json:"ancestors"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasAncestor reports whether id is the parent or any ancestor of l.
func (l Location) HasAncestor(id primitive.ObjectID) bool {
	if l.Parent != nil && *l.Parent == id {
		return true
	}
	for _, a := range l.Ancestors {
		if a.LocationID == id {
			return true
		}
	}
	return false
}

// AncestorOfType returns the ancestor with the given type, if any.
func (l Location) AncestorOfType(t string) (Ancestor, bool) {
	for _, a := range l.Ancestors {
		if a.Type == t {
			return a, true
		}
	}
	return Ancestor{}, false
}
