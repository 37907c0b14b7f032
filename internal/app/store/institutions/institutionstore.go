// internal/app/store/institutions/institutionstore.go
package institutionstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("institution not found")
	ErrInvalid  = errors.New("type, name and mobile number are required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("institutions")}
}

// Create registers an institution awaiting verification.
func (s *Store) Create(ctx context.Context, inst models.Institution) (models.Institution, error) {
	inst.Type = strings.TrimSpace(inst.Type)
	inst.Name = strings.TrimSpace(inst.Name)
	inst.MobileNumber = strings.TrimSpace(inst.MobileNumber)
	if inst.Type == "" || inst.Name == "" || inst.MobileNumber == "" {
		return models.Institution{}, ErrInvalid
	}
	inst.ID = primitive.NewObjectID()
	inst.VerificationStatus = models.InstitutionPending
	inst.VerifiedBy = nil
	if inst.ServicesOffered == nil {
		inst.ServicesOffered = []string{}
	}
	if inst.Photos == nil {
		inst.Photos = []string{}
	}
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, inst); err != nil {
		return models.Institution{}, err
	}
	return inst, nil
}

// Get loads one institution.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Institution, error) {
	var inst models.Institution
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inst); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Institution{}, ErrNotFound
		}
		return models.Institution{}, err
	}
	return inst, nil
}

// ListFilter narrows List. An empty AddressContains lists everything.
type ListFilter struct {
	AddressContains string
	Status          string
	Type            string
}

// List returns institutions newest first. AddressContains is matched
// case-insensitively against fullAddress.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Institution, error) {
	filter := bson.M{}
	if f.AddressContains != "" {
		filter["fullAddress"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.AddressContains), Options: "i"}
	}
	if f.Status != "" {
		filter["verificationStatus"] = f.Status
	}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Institution{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies set and returns the updated document.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (models.Institution, error) {
	set["updatedAt"] = time.Now().UTC()
	var inst models.Institution
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&inst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Institution{}, ErrNotFound
	}
	return inst, err
}

// Delete removes an institution.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAll counts institutions matching the address filter.
func (s *Store) CountAll(ctx context.Context, addressContains string) (int64, error) {
	filter := bson.M{}
	if addressContains != "" {
		filter["fullAddress"] = primitive.Regex{Pattern: regexp.QuoteMeta(addressContains), Options: "i"}
	}
	return s.c.CountDocuments(ctx, filter)
}
