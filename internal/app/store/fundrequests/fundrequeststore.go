// internal/app/store/fundrequests/fundrequeststore.go
package fundrequeststore

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
	ErrNotFound   = errors.New("fund request not found")
	ErrBadPurpose = errors.New("invalid purpose")
	ErrBadAmount  = errors.New("amount required must be greater than zero")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("fundrequests")}
}

// Create validates and inserts a request in PENDING_APPROVAL.
func (s *Store) Create(ctx context.Context, fr models.FundRequest) (models.FundRequest, error) {
	if !validPurpose(fr.Purpose) {
		return models.FundRequest{}, ErrBadPurpose
	}
	if fr.AmountRequired <= 0 {
		return models.FundRequest{}, ErrBadAmount
	}
	fr.ID = primitive.NewObjectID()
	fr.AmountCollected = 0
	if fr.Status == "" {
		fr.Status = models.FundPendingApproval
	}
	if fr.ApprovalLevel == "" {
		fr.ApprovalLevel = models.RoleVillageAdmin
	}
	if fr.ApprovalHistory == nil {
		fr.ApprovalHistory = []models.ApprovalEntry{}
	}
	if fr.SupportingDocuments == nil {
		fr.SupportingDocuments = []string{}
	}
	now := time.Now().UTC()
	fr.CreatedAt = now
	fr.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, fr); err != nil {
		return models.FundRequest{}, err
	}
	return fr, nil
}

// Get loads one request.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.FundRequest, error) {
	var fr models.FundRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&fr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.FundRequest{}, ErrNotFound
		}
		return models.FundRequest{}, err
	}
	return fr, nil
}

// List returns requests matching filter, newest first.
func (s *Store) List(ctx context.Context, filter bson.M) ([]models.FundRequest, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.FundRequest{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats summarizes a set of requests for the member dashboard.
type Stats struct {
	Active         int64   `json:"activeApplications"`
	Approved       int64   `json:"approvedApplications"`
	TotalDisbursed float64 `json:"totalAmountDisbursed"`
	PendingReviews int64   `json:"pendingReviews"`
	Total          int64   `json:"totalApplications"`
}

// Dashboard is Stats plus the requests it was computed from, newest first.
type Dashboard struct {
	Stats
	Applications []models.FundRequest `json:"applications"`
}

// Dashboard summarizes the requests matching filter and returns them.
func (s *Store) Dashboard(ctx context.Context, filter bson.M) (Dashboard, error) {
	rows, err := s.List(ctx, filter)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Stats: Summarize(rows), Applications: rows}, nil
}

// Summarize folds requests into Stats. Approved means ACTIVE or COMPLETED;
// only approved requests count towards the disbursed total.
func Summarize(rows []models.FundRequest) Stats {
	var st Stats
	for _, fr := range rows {
		st.Total++
		switch fr.Status {
		case models.FundPendingApproval:
			st.Active++
			st.PendingReviews++
		case models.FundActive:
			st.Active++
			st.Approved++
			st.TotalDisbursed += fr.AmountCollected
		case models.FundCompleted:
			st.Approved++
			st.TotalDisbursed += fr.AmountCollected
		}
	}
	return st
}

// AddCollected increments amountCollected and marks the request COMPLETED
// once the target is reached, unless it was rejected or frozen. It returns
// the updated request.
func (s *Store) AddCollected(ctx context.Context, id primitive.ObjectID, amount float64) (models.FundRequest, error) {
	var fr models.FundRequest
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"amountCollected": amount},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&fr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.FundRequest{}, ErrNotFound
	}
	if err != nil {
		return models.FundRequest{}, err
	}
	if fr.AmountRequired > 0 && fr.AmountCollected >= fr.AmountRequired && fr.Status != models.FundCompleted {
		// A review may land between the two writes; rejected and frozen stick.
		var done models.FundRequest
		err := s.c.FindOneAndUpdate(ctx,
			bson.M{
				"_id":    id,
				"status": bson.M{"$nin": bson.A{models.FundRejected, models.FundFrozen, models.FundCompleted}},
			},
			bson.M{"$set": bson.M{"status": models.FundCompleted}},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&done)
		switch {
		case err == nil:
			fr = done
		case !errors.Is(err, mongo.ErrNoDocuments):
			return fr, err
		}
	}
	return fr, nil
}

// Review moves a request to status and appends the review to its history.
func (s *Store) Review(ctx context.Context, id primitive.ObjectID, status string, entry models.ApprovalEntry) (models.FundRequest, error) {
	now := time.Now().UTC()
	if entry.Date.IsZero() {
		entry.Date = now
	}
	entry.Status = status
	var fr models.FundRequest
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{
			"$set":  bson.M{"status": status, "approvalLevel": entry.Level, "updatedAt": now},
			"$push": bson.M{"approvalHistory": entry},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&fr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.FundRequest{}, ErrNotFound
	}
	if err != nil {
		return models.FundRequest{}, err
	}
	return fr, nil
}

// SumCollected totals amountCollected over requests matching filter.
func (s *Store) SumCollected(ctx context.Context, filter bson.M) (float64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amountCollected"}}}},
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

func validPurpose(p string) bool {
	for _, v := range models.FundPurposes {
		if v == p {
			return true
		}
	}
	return false
}
