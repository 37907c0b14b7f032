// internal/app/store/carousel/carouselstore.go
package carouselstore

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

var ErrNotFound = errors.New("image not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("carouselimages")}
}

var displayOrder = bson.D{{Key: "order", Value: 1}, {Key: "createdAt", Value: -1}}

// Create stores a banner.
func (s *Store) Create(ctx context.Context, img models.CarouselImage) (models.CarouselImage, error) {
	img.ID = primitive.NewObjectID()
	img.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, img); err != nil {
		return models.CarouselImage{}, err
	}
	return img, nil
}

// Get loads one banner.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.CarouselImage, error) {
	var img models.CarouselImage
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&img); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.CarouselImage{}, ErrNotFound
		}
		return models.CarouselImage{}, err
	}
	return img, nil
}

// ListActive returns the banners shown on the landing page: active and
// not past their expiry date.
func (s *Store) ListActive(ctx context.Context, now time.Time) ([]models.CarouselImage, error) {
	return s.find(ctx, bson.M{
		"isActive": true,
		"$or": bson.A{
			bson.M{"expiryDate": bson.M{"$exists": false}},
			bson.M{"expiryDate": nil},
			bson.M{"expiryDate": bson.M{"$gt": now.UTC()}},
		},
	})
}

// ListAll returns every banner in display order.
func (s *Store) ListAll(ctx context.Context) ([]models.CarouselImage, error) {
	return s.find(ctx, bson.M{})
}

// Update applies set and returns the updated banner.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (models.CarouselImage, error) {
	var img models.CarouselImage
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&img)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CarouselImage{}, ErrNotFound
	}
	return img, err
}

// Delete removes one banner and returns it so its file can be removed.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (models.CarouselImage, error) {
	var img models.CarouselImage
	err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&img)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CarouselImage{}, ErrNotFound
	}
	return img, err
}

// BulkSetActive publishes or unpublishes many banners.
func (s *Store) BulkSetActive(ctx context.Context, ids []primitive.ObjectID, active bool) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, bson.M{"$set": bson.M{"isActive": active}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// BulkDelete removes many banners and returns the removed documents.
func (s *Store) BulkDelete(ctx context.Context, ids []primitive.ObjectID) ([]models.CarouselImage, error) {
	imgs, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	if _, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return imgs, nil
}

// DeactivateExpired turns off active banners whose expiry has passed.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"isActive": true, "expiryDate": bson.M{"$lte": now.UTC()}},
		bson.M{"$set": bson.M{"isActive": false}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.CarouselImage, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(displayOrder))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.CarouselImage{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
