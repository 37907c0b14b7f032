// internal/app/store/settings/settingsstore.go
package settingsstore

import (
	"context"
	"errors"
	"time"

	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the village_settings collection, one document
// per location.
type Store struct {
	c *mongo.Collection
}

// New creates a new settings store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("village_settings")}
}

// Get returns the settings for a location, or empty settings bound to the
// location when nothing has been saved.
func (s *Store) Get(ctx context.Context, locationID primitive.ObjectID) (models.VillageSettings, error) {
	var vs models.VillageSettings
	err := s.c.FindOne(ctx, bson.M{"location": locationID}).Decode(&vs)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.VillageSettings{Location: locationID}, nil
	}
	if err != nil {
		return models.VillageSettings{}, err
	}
	return vs, nil
}

// Save upserts the settings for a location.
func (s *Store) Save(ctx context.Context, locationID primitive.ObjectID, vs models.VillageSettings) error {
	now := time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"location":      locationID,
			"contactPhone":  vs.ContactPhone,
			"officeAddress": vs.OfficeAddress,
			"meetingDay":    vs.MeetingDay,
			"notes":         vs.Notes,
			"updatedAt":     now,
			"updatedBy":     vs.UpdatedByID,
			"updatedByName": vs.UpdatedByName,
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"location": locationID}, update, options.Update().SetUpsert(true))
	return err
}

// Delete removes a location's settings.
func (s *Store) Delete(ctx context.Context, locationID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"location": locationID})
	return err
}
