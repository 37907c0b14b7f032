// internal/app/store/announcements/announcementstore.go
package announcementstore

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

var ErrNotFound = errors.New("announcement not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("announcements")}
}

// Create stores an announcement. Sent announcements get SentAt now.
func (s *Store) Create(ctx context.Context, a models.Announcement) (models.Announcement, error) {
	a.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	if a.Status == "" {
		a.Status = models.AnnouncementSent
	}
	if a.Status == models.AnnouncementSent && a.SentAt == nil {
		a.SentAt = &now
	}
	if a.SelectedTargets == nil {
		a.SelectedTargets = []string{}
	}
	if a.Attachments == nil {
		a.Attachments = []string{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Announcement{}, err
	}
	return a, nil
}

// Get loads one announcement.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Announcement, error) {
	var a models.Announcement
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Announcement{}, ErrNotFound
		}
		return models.Announcement{}, err
	}
	return a, nil
}

// List returns every announcement, newest first.
func (s *Store) List(ctx context.Context) ([]models.Announcement, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// DueScheduled returns scheduled announcements whose time has come.
func (s *Store) DueScheduled(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	return s.find(ctx, bson.M{
		"status":       models.AnnouncementScheduled,
		"scheduledFor": bson.M{"$lte": now.UTC()},
	}, options.Find().SetSort(bson.D{{Key: "scheduledFor", Value: 1}}))
}

// MarkSent flips a scheduled announcement to sent. It reports false when
// another worker got there first.
func (s *Store) MarkSent(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.AnnouncementScheduled},
		bson.M{"$set": bson.M{"status": models.AnnouncementSent, "sentAt": at.UTC(), "updatedAt": at.UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Announcement, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Announcement{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
