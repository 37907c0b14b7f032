// internal/app/store/idcounters/idcounterstore.go
package idcounterstore

import (
	"context"

	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store hands out per-key sequences from the idcounters collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("idcounters")}
}

// Next atomically increments key's sequence, creating it at 1.
func (s *Store) Next(ctx context.Context, key string) (int64, error) {
	var out models.IDCounter
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"key": key},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, err
	}
	return out.Seq, nil
}

// Peek returns the current sequence for key, 0 if unused.
func (s *Store) Peek(ctx context.Context, key string) (int64, error) {
	var out models.IDCounter
	err := s.c.FindOne(ctx, bson.M{"key": key}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	return out.Seq, err
}
