// internal/domain/models/announcement.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AnnouncementSent      = "sent"
	AnnouncementDraft     = "draft"
	AnnouncementScheduled = "scheduled"

	ScopeWhole    = "whole"
	ScopeSelected = "selected"
)

// AnnouncementTargetTypes lists who an announcement can be addressed to.
var AnnouncementTargetTypes = []string{"villages", "mandals", "districts", "members", "state", "occupation"}

// Announcement is a broadcast from an admin. Selected targets are location
// ids, member ids or occupation names depending on TargetType.
type Announcement struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Subject           string             `bson:"subject" json:"subject"`
	Body              string             `bson:"body" json:"body"`
	Scope             string             `bson:"scope" json:"scope"`
	TargetType        string             `bson:"targetType" json:"targetType"`
	TargetDescription string             `bson:"targetDescription,omitempty" json:"targetDescription,omitempty"`
	SelectedTargets   []string           `bson:"selectedTargets" json:"selectedTargets"`
	Sender            primitive.ObjectID `bson:"sender" json:"sender"`
	SenderRole        string             `bson:"senderRole" json:"senderRole"`
	Status            string             `bson:"status" json:"status"`
	ScheduledFor      *time.Time         `bson:"scheduledFor,omitempty" json:"scheduledFor,omitempty"`
	SentAt            *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	Attachments       []string           `bson:"attachments" json:"attachments"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
