// internal/domain/models/institution.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Institution verification states.
const (
	InstitutionPending  = "PENDING"
	InstitutionApproved = "APPROVED"
	InstitutionRejected = "REJECTED"
)

// Institution is a partner hospital, school or business offering members a
// discount. Institutions register publicly and are verified by admins.
type Institution struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Type               string              `bson:"type" json:"type"`
	Name               string              `bson:"name" json:"name"`
	OwnerName          string              `bson:"ownerName" json:"ownerName"`
	MobileNumber       string              `bson:"mobileNumber" json:"mobileNumber"`
	WhatsappNumber     string              `bson:"whatsappNumber,omitempty" json:"whatsappNumber,omitempty"`
	FullAddress        string              `bson:"fullAddress" json:"fullAddress"`
	GoogleMapsLink     string              `bson:"googleMapsLink,omitempty" json:"googleMapsLink,omitempty"`
	DiscountPercentage string              `bson:"mewsDiscountPercentage,omitempty" json:"mewsDiscountPercentage,omitempty"`
	ServicesOffered    []string            `bson:"servicesOffered" json:"servicesOffered"`
	Photos             []string            `bson:"institutionPhotos" json:"institutionPhotos"`
	VerificationStatus string              `bson:"verificationStatus" json:"verificationStatus"`
	VerifiedBy         *primitive.ObjectID `bson:"verifiedBy,omitempty" json:"verifiedBy,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
