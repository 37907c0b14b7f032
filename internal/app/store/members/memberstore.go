// internal/app/store/members/memberstore.go
package memberstore

import (
	"context"
	"errors"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/paging"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound   = errors.New("member not found")
	ErrDuplicate  = errors.New("a member with this Aadhaar number or MEWS id already exists")
	ErrBadField   = errors.New("invalid duplicate-check field")
	ErrBadStatus  = errors.New("invalid verification status")
	ErrMPINLocked = errors.New("mpin locked")
)

// Duplicate-check fields accepted by CheckDuplicate, mapped to document paths.
var duplicateFields = map[string]string{
	"aadhaarNumber": "aadhaarNumber",
	"voterId":       "voterId.epicNumber",
	"rationCard":    "rationCard.number",
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("members")}
}

// Collection exposes the underlying collection to aggregation queries.
func (s *Store) Collection() *mongo.Collection { return s.c }

// Create inserts a member. A zero ID is assigned; name_ci, the normalized
// mobile and timestamps are always recomputed.
func (s *Store) Create(ctx context.Context, m models.Member) (models.Member, error) {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	m.Name = strings.TrimSpace(m.Name)
	m.Surname = strings.TrimSpace(m.Surname)
	m.NameCI = text.Fold(m.FullName())
	m.MobileNumber = authutil.NormalizeMobile(m.MobileNumber)
	if m.VerificationStatus == "" {
		m.VerificationStatus = models.MemberPending
	}
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Member{}, ErrDuplicate
		}
		return models.Member{}, err
	}
	return m, nil
}

// Get loads one member.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Member, error) {
	var m models.Member
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Member{}, ErrNotFound
		}
		return models.Member{}, err
	}
	return m, nil
}

// Update applies a $set to one member. name_ci follows name/surname when
// either is present in set; mobileNumber is stored normalized.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	if len(set) == 0 {
		return nil
	}
	_, hasName := set["name"]
	_, hasSurname := set["surname"]
	if hasName || hasSurname {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if v, ok := set["name"].(string); ok {
			cur.Name = v
		}
		if v, ok := set["surname"].(string); ok {
			cur.Surname = v
		}
		set["name_ci"] = text.Fold(cur.FullName())
	}
	if v, ok := set["mobileNumber"].(string); ok {
		set["mobileNumber"] = authutil.NormalizeMobile(v)
	}
	set["updatedAt"] = time.Now().UTC()

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus records an admin review decision.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string, approver primitive.ObjectID, notes string) (models.Member, error) {
	if !validStatus(status) {
		return models.Member{}, ErrBadStatus
	}
	set := bson.M{
		"verificationStatus": status,
		"approvedBy":         approver,
		"updatedAt":          time.Now().UTC(),
	}
	if notes != "" {
		set["adminNotes"] = notes
	}
	var m models.Member
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Member{}, ErrNotFound
	}
	return m, err
}

// SetRole changes the role and assigned location stored on a member, used
// when a member is promoted to (or demoted from) an admin tier.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string, loc *primitive.ObjectID) error {
	set := bson.M{"role": role, "updatedAt": time.Now().UTC()}
	update := bson.M{"$set": set}
	if loc != nil {
		set["assignedLocation"] = *loc
	} else {
		update["$unset"] = bson.M{"assignedLocation": ""}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a member and every dependent that names it as head of
// family. It returns the number of documents removed.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	if res.DeletedCount == 0 {
		return 0, ErrNotFound
	}
	deps, err := s.c.DeleteMany(ctx, bson.M{"headOfFamily": id})
	if err != nil {
		return res.DeletedCount, err
	}
	return res.DeletedCount + deps.DeletedCount, nil
}

// Dependents returns the members whose head of family is head.
func (s *Store) Dependents(ctx context.Context, head primitive.ObjectID) ([]models.Member, error) {
	return s.find(ctx, bson.M{"headOfFamily": head}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

// List returns one keyset page of members matching filter, ordered by
// name_ci then _id.
func (s *Store) List(ctx context.Context, filter bson.M, before, after string) ([]models.Member, paging.Result, error) {
	cfg := paging.ConfigureKeyset(before, after)
	if win := cfg.KeysetWindow("name_ci"); win != nil {
		if len(filter) == 0 {
			filter = win
		} else {
			filter = bson.M{"$and": bson.A{filter, win}}
		}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "name_ci")

	rows, err := s.find(ctx, filter, find)
	if err != nil {
		return nil, paging.Result{}, err
	}
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}
	res := paging.TrimPage(&rows, before, after)
	return rows, res, nil
}

// Find returns every member matching filter, without paging.
func (s *Store) Find(ctx context.Context, filter bson.M) ([]models.Member, error) {
	return s.find(ctx, filter, nil)
}

// Count returns the number of members matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// IDs returns the ids of every member matching filter.
func (s *Store) IDs(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out, nil
}

// CheckDuplicate reports whether any member already holds value in the
// named field (aadhaarNumber, voterId or rationCard).
func (s *Store) CheckDuplicate(ctx context.Context, field, value string) (bool, error) {
	path, ok := duplicateFields[field]
	if !ok {
		return false, ErrBadField
	}
	err := s.c.FindOne(ctx, bson.M{path: strings.TrimSpace(value)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindByMobile returns the member registered with mobile, compared in
// normalized form. Heads of family are preferred when dependents share the
// number.
func (s *Store) FindByMobile(ctx context.Context, mobile string) (models.Member, error) {
	var m models.Member
	opts := options.FindOne().SetSort(bson.D{{Key: "headOfFamily", Value: 1}, {Key: "createdAt", Value: 1}})
	if err := s.c.FindOne(ctx, bson.M{"mobileNumber": authutil.NormalizeMobile(mobile)}, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Member{}, ErrNotFound
		}
		return models.Member{}, err
	}
	return m, nil
}

// SetOTP stores a hashed login code and its expiry.
func (s *Store) SetOTP(ctx context.Context, id primitive.ObjectID, hash string, expires time.Time) error {
	now := time.Now().UTC()
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"otpHash":     hash,
		"otpExpires":  expires.UTC(),
		"otpLastSent": now,
		"updatedAt":   now,
	}})
}

// ClearOTP removes the login code and marks the phone verified.
func (s *Store) ClearOTP(ctx context.Context, id primitive.ObjectID) error {
	return s.updateOne(ctx, id, bson.M{
		"$unset": bson.M{"otpHash": "", "otpExpires": ""},
		"$set":   bson.M{"isPhoneVerified": true, "updatedAt": time.Now().UTC()},
	})
}

// ClearExpiredOTPs removes codes whose expiry has passed.
func (s *Store) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"otpExpires": bson.M{"$lt": now.UTC()}},
		bson.M{"$unset": bson.M{"otpHash": "", "otpExpires": ""}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SetMPIN stores a new MPIN hash and enables MPIN login. Any lock and the
// mpinDigest field older records carry are dropped.
func (s *Store) SetMPIN(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"mpinHash":           hash,
			"mpinCreated":        true,
			"isMpinEnabled":      true,
			"mpinFailedAttempts": 0,
			"updatedAt":          time.Now().UTC(),
		},
		"$unset": bson.M{"mpinLockedUntil": "", "mpinDigest": ""},
	})
}

// RecordMPINFailure counts a failed MPIN attempt and locks the member
// until lockUntil once maxAttempts is reached. It returns the new count.
func (s *Store) RecordMPINFailure(ctx context.Context, id primitive.ObjectID, maxAttempts int, lockUntil time.Time) (int, error) {
	var m models.Member
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$inc": bson.M{"mpinFailedAttempts": 1}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"mpinFailedAttempts": 1})).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if m.MPINFailedAttempts >= maxAttempts {
		if err := s.updateOne(ctx, id, bson.M{"$set": bson.M{
			"mpinLockedUntil":    lockUntil.UTC(),
			"mpinFailedAttempts": 0,
		}}); err != nil {
			return m.MPINFailedAttempts, err
		}
		return m.MPINFailedAttempts, ErrMPINLocked
	}
	return m.MPINFailedAttempts, nil
}

// ResetMPINFailures clears the failure counter and any lock.
func (s *Store) ResetMPINFailures(ctx context.Context, id primitive.ObjectID) error {
	return s.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"mpinFailedAttempts": 0},
		"$unset": bson.M{"mpinLockedUntil": ""},
	})
}


func (s *Store) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Member, error) {
	if opts == nil {
		opts = options.Find()
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Member{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validStatus(s string) bool {
	for _, v := range models.MemberStatuses {
		if v == s {
			return true
		}
	}
	return false
}
