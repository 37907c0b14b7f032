// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when the username or mobile number is taken.
	ErrDuplicate = errors.New("a user with this username or mobile number already exists")
	errBadRole   = errors.New("unknown role")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Create hashes password and inserts the user. New users are active.
func (s *Store) Create(ctx context.Context, u models.User, password string) (models.User, error) {
	if !models.IsAdminRole(u.Role) && u.Role != models.RoleInstitution {
		return models.User{}, errBadRole
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	u.ID = primitive.NewObjectID()
	u.Username = strings.TrimSpace(u.Username)
	u.UsernameCI = text.Fold(u.Username)
	u.Email = authutil.NormalizeEmail(u.Email)
	u.MobileNumber = strings.TrimSpace(u.MobileNumber)
	u.PasswordHash = hash
	u.IsActive = true
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByLogin resolves a login identifier: a case-insensitive username or
// an email address.
func (s *Store) GetByLogin(ctx context.Context, login string) (models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return models.User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username_ci": text.Fold(login)},
		bson.M{"username": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(login) + "$", Options: "i"}},
		bson.M{"email": authutil.NormalizeEmail(login)},
	}})
}

// FindByMemberID returns the admin login created when a member was promoted.
func (s *Store) FindByMemberID(ctx context.Context, memberID primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"memberId": memberID})
}

// ListByLocations returns admins assigned to any of locs whose role is in
// roles, newest first. A nil locs lists every location.
func (s *Store) ListByLocations(ctx context.Context, locs []primitive.ObjectID, roles []string) ([]models.User, error) {
	filter := bson.M{}
	if locs != nil {
		filter["assignedLocation"] = bson.M{"$in": locs}
	}
	if len(roles) > 0 {
		filter["role"] = bson.M{"$in": roles}
	}
	cur, err := s.c.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"passwordHash": 0}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminsFor returns active admins of the given role assigned to loc.
func (s *Store) AdminsFor(ctx context.Context, loc primitive.ObjectID, role string) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{"assignedLocation": loc, "role": role, "isActive": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update holds the admin-editable fields. Nil fields are left alone.
type Update struct {
	Email        *string
	MobileNumber *string
	IsActive     *bool
	Password     *string
}

// Update applies upd to one user.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Email != nil {
		set["email"] = authutil.NormalizeEmail(*upd.Email)
	}
	if upd.MobileNumber != nil {
		set["mobileNumber"] = strings.TrimSpace(*upd.MobileNumber)
	}
	if upd.IsActive != nil {
		set["isActive"] = *upd.IsActive
	}
	if upd.Password != nil {
		hash, err := authutil.HashPassword(*upd.Password)
		if err != nil {
			return models.User{}, err
		}
		set["passwordHash"] = hash
	}
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, ErrNotFound
	case wafflemongo.IsDup(err):
		return models.User{}, ErrDuplicate
	case err != nil:
		return models.User{}, err
	}
	return u, nil
}

// Delete removes a user.
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

// SetPassword replaces the password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, password string) error {
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return err
	}
	return s.set(ctx, id, bson.M{"passwordHash": hash})
}

// ToggleTwoFactor flips the 2FA flag and returns the new value.
func (s *Store) ToggleTwoFactor(ctx context.Context, id primitive.ObjectID) (bool, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	enabled := !u.TwoFactorEnabled
	if err := s.set(ctx, id, bson.M{"twoFactorEnabled": enabled}); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetAssignedLocation moves an admin to another location.
func (s *Store) SetAssignedLocation(ctx context.Context, id, loc primitive.ObjectID) error {
	return s.set(ctx, id, bson.M{"assignedLocation": loc})
}

// Assign gives an existing login an admin role at loc, links it to the
// member it was promoted from and reactivates it.
func (s *Store) Assign(ctx context.Context, id primitive.ObjectID, role string, loc *primitive.ObjectID, memberID *primitive.ObjectID) (models.User, error) {
	if !models.IsAdminRole(role) {
		return models.User{}, errBadRole
	}
	set := bson.M{"role": role, "isActive": true, "updatedAt": time.Now().UTC()}
	update := bson.M{"$set": set}
	if loc != nil {
		set["assignedLocation"] = *loc
	} else {
		update["$unset"] = bson.M{"assignedLocation": ""}
	}
	if memberID != nil {
		set["memberId"] = *memberID
	}
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// CountByRole counts users per role.
func (s *Store) CountByRole(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$role", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			Role string `bson:"_id"`
			N    int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Role] = row.N
	}
	return out, cur.Err()
}

// WithoutLocation lists admins (other than super admins) with no assigned location.
func (s *Store) WithoutLocation(ctx context.Context) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"role":             bson.M{"$in": models.AdminRoles[1:]},
		"assignedLocation": bson.M{"$exists": false},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) error {
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

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}
