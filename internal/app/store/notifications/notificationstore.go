// internal/app/store/notifications/notificationstore.go
package notificationstore

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

var (
	ErrNotFound = errors.New("notification not found")
	// ErrNotOwner means the notification belongs to someone else.
	ErrNotOwner = errors.New("notification belongs to another recipient")
)

// MaxList caps how many notifications a recipient sees at once.
const MaxList = 100

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

func prepare(n *models.Notification, now time.Time) {
	n.ID = primitive.NewObjectID()
	if n.Type == "" {
		n.Type = models.NotifyInfo
	}
	n.IsRead = false
	n.CreatedAt = now
	n.UpdatedAt = now
}

// Create stores one notification.
func (s *Store) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	prepare(&n, time.Now().UTC())
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// CreateMany stores a batch and returns how many were written.
func (s *Store) CreateMany(ctx context.Context, ns []models.Notification) (int, error) {
	if len(ns) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(ns))
	for i := range ns {
		prepare(&ns[i], now)
		docs = append(docs, ns[i])
	}
	res, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if res != nil {
		return len(res.InsertedIDs), err
	}
	return 0, err
}

// ListForRecipient returns the newest notifications for recipient.
func (s *Store) ListForRecipient(ctx context.Context, recipient primitive.ObjectID) ([]models.Notification, error) {
	cur, err := s.c.Find(ctx, bson.M{"recipient": recipient}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(MaxList))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount counts unread notifications for recipient.
func (s *Store) UnreadCount(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"recipient": recipient, "isRead": false})
}

// MarkRead marks one notification read after checking ownership.
func (s *Store) MarkRead(ctx context.Context, id, recipient primitive.ObjectID) (models.Notification, error) {
	if err := s.checkOwner(ctx, id, recipient); err != nil {
		return models.Notification{}, err
	}
	var n models.Notification
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&n)
	return n, err
}

// MarkAllRead marks every unread notification of recipient read.
func (s *Store) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"recipient": recipient, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes one notification after checking ownership.
func (s *Store) Delete(ctx context.Context, id, recipient primitive.ObjectID) error {
	if err := s.checkOwner(ctx, id, recipient); err != nil {
		return err
	}
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) checkOwner(ctx context.Context, id, recipient primitive.ObjectID) error {
	var n models.Notification
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"recipient": 1})).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if n.Recipient != recipient {
		return ErrNotOwner
	}
	return nil
}
