// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an administrator or institution login. Members sign in against
// their own Member document and never have a User record unless promoted.
type User struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Username         string              `bson:"username" json:"username"`
	UsernameCI       string              `bson:"username_ci" json:"-"` // lowercase, diacritics-stripped
	Email            string              `bson:"email,omitempty" json:"email,omitempty"`
	MobileNumber     string              `bson:"mobileNumber,omitempty" json:"mobileNumber,omitempty"`
	IsPhoneVerified  bool                `bson:"isPhoneVerified" json:"isPhoneVerified"`
	PasswordHash     string              `bson:"passwordHash" json:"-"`
	Role             string              `bson:"role" json:"role"`
	AssignedLocation *primitive.ObjectID `bson:"assignedLocation,omitempty" json:"assignedLocation,omitempty"`
	InstitutionID    *primitive.ObjectID `bson:"institutionId,omitempty" json:"institutionId,omitempty"`
	MemberID         *primitive.ObjectID `bson:"memberId,omitempty" json:"memberId,omitempty"`
	IsActive         bool                `bson:"isActive" json:"isActive"`
	TwoFactorEnabled bool                `bson:"twoFactorEnabled" json:"twoFactorEnabled"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
