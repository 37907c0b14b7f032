// internal/domain/models/villagesettings.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VillageSettings holds the admin-editable details for one location's
// office. There is at most one document per location.
type VillageSettings struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Location primitive.ObjectID `bson:"location" json:"location"`

	ContactPhone  string `bson:"contactPhone,omitempty" json:"contactPhone"`
	OfficeAddress string `bson:"officeAddress,omitempty" json:"officeAddress"`
	MeetingDay    string `bson:"meetingDay,omitempty" json:"meetingDay"`
	Notes         string `bson:"notes,omitempty" json:"notes"`

	UpdatedAt     *time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	UpdatedByID   *primitive.ObjectID `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	UpdatedByName string              `bson:"updatedByName,omitempty" json:"updatedByName,omitempty"`
}

// IsEmpty reports whether nothing has been saved yet.
func (s VillageSettings) IsEmpty() bool {
	return s.ContactPhone == "" && s.OfficeAddress == "" && s.MeetingDay == "" && s.Notes == ""
}
