// internal/app/store/donations/donationstore.go
package donationstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrBadAmount    = errors.New("amount must be greater than zero")
	ErrDuplicateTxn = errors.New("transaction already recorded")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("donations")}
}

// Create records a donation. A blank transaction id gets a fresh uuid and
// currency defaults to INR.
func (s *Store) Create(ctx context.Context, d models.Donation) (models.Donation, error) {
	if d.Amount <= 0 {
		return models.Donation{}, ErrBadAmount
	}
	d.ID = primitive.NewObjectID()
	if d.TransactionID == "" {
		d.TransactionID = "TXN-" + uuid.NewString()
	}
	if d.Currency == "" {
		d.Currency = "INR"
	}
	if d.Type == "" {
		d.Type = models.DonationCampaign
	}
	if d.Status == "" {
		d.Status = models.DonationSuccess
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, d); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Donation{}, ErrDuplicateTxn
		}
		return models.Donation{}, err
	}
	return d, nil
}

// ListByDonor returns a donor's donations, newest first.
func (s *Store) ListByDonor(ctx context.Context, donor primitive.ObjectID) ([]models.Donation, error) {
	cur, err := s.c.Find(ctx, bson.M{"donor": donor}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Donation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Totals summarizes successful donations.
type Totals struct {
	Amount       float64
	Count        int64
	Sponsorships int64 // distinct fund requests supported
}

// DonorTotals sums a donor's successful donations.
func (s *Store) DonorTotals(ctx context.Context, donor primitive.ObjectID) (Totals, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"donor": donor, "status": models.DonationSuccess}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"amount":   bson.M{"$sum": "$amount"},
			"count":    bson.M{"$sum": 1},
			"requests": bson.M{"$addToSet": "$fundRequest"},
		}}},
	})
	if err != nil {
		return Totals{}, err
	}
	defer cur.Close(ctx)

	var row struct {
		Amount   float64               `bson:"amount"`
		Count    int64                 `bson:"count"`
		Requests []*primitive.ObjectID `bson:"requests"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&row); err != nil {
			return Totals{}, err
		}
	}
	if err := cur.Err(); err != nil {
		return Totals{}, err
	}
	t := Totals{Amount: row.Amount, Count: row.Count}
	for _, r := range row.Requests {
		if r != nil {
			t.Sponsorships++
		}
	}
	return t, nil
}

// SumAll totals every donation in status.
func (s *Store) SumAll(ctx context.Context, status string) (float64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": status}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var row struct {
		Total float64 `bson:"total"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&row); err != nil {
			return 0, err
		}
	}
	return row.Total, cur.Err()
}
