// internal/domain/models/carousel.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CarouselImage is a landing-page banner. A set ExpiryDate hides the banner
// once it has passed.
type CarouselImage struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title       string             `bson:"title,omitempty" json:"title,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL    string             `bson:"imageUrl" json:"imageUrl"`
	Order       int                `bson:"order" json:"order"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	ExpiryDate  *time.Time         `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	UploadedBy  primitive.ObjectID `bson:"uploadedBy" json:"uploadedBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
