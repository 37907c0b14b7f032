// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types.
const (
	NotifyJob         = "job"
	NotifyApplication = "application"
	NotifyAlert       = "alert"
	NotifySuccess     = "success"
	NotifyInfo        = "info"
)

// Notification is an in-app message addressed to one principal.
type Notification struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Recipient    primitive.ObjectID  `bson:"recipient" json:"recipient"`
	Type         string              `bson:"type" json:"type"`
	Title        string              `bson:"title" json:"title"`
	Message      string              `bson:"message" json:"message"`
	IsRead       bool                `bson:"isRead" json:"isRead"`
	RelatedID    *primitive.ObjectID `bson:"relatedId,omitempty" json:"relatedId,omitempty"`
	RelatedModel string              `bson:"relatedModel,omitempty" json:"relatedModel,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
