package userstore

import (
	"context"
	"errors"

	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.PrincipalFetcher. It loads a fresh principal on
// every request from users, members or institutions, in that order unless
// the token names the kind.
type Fetcher struct {
	users        *mongo.Collection
	members      *mongo.Collection
	institutions *mongo.Collection
	locations    *mongo.Collection
}

// NewFetcher creates a PrincipalFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{
		users:        db.Collection("users"),
		members:      db.Collection("members"),
		institutions: db.Collection("institutions"),
		locations:    db.Collection("locations"),
	}
}

// FetchPrincipal returns (nil, nil) when no active principal has id.
func (f *Fetcher) FetchPrincipal(ctx context.Context, id primitive.ObjectID, kind string) (*auth.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	kinds := []string{models.KindUser, models.KindMember, models.KindInstitution}
	if kind != "" {
		kinds = []string{kind}
	}
	for _, k := range kinds {
		var (
			p   *auth.Principal
			err error
		)
		switch k {
		case models.KindUser:
			p, err = f.fromUser(ctx, id)
		case models.KindMember:
			p, err = f.fromMember(ctx, id)
		case models.KindInstitution:
			p, err = f.fromInstitution(ctx, id)
		default:
			return nil, nil
		}
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, nil
}

func (f *Fetcher) fromUser(ctx context.Context, id primitive.ObjectID) (*auth.Principal, error) {
	var u models.User
	err := f.users.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"passwordHash": 0})).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, nil
	}
	p := &auth.Principal{
		ID:               u.ID,
		Kind:             models.KindUser,
		Name:             u.Username,
		Username:         u.Username,
		Email:            u.Email,
		Mobile:           u.MobileNumber,
		Role:             u.Role,
		AssignedLocation: u.AssignedLocation,
		InstitutionID:    u.InstitutionID,
		MemberID:         u.MemberID,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
	f.fillLocation(ctx, p)
	return p, nil
}

func (f *Fetcher) fromMember(ctx context.Context, id primitive.ObjectID) (*auth.Principal, error) {
	var m models.Member
	err := f.members.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{
		"_id": 1, "name": 1, "surname": 1, "email": 1, "mobileNumber": 1,
		"mewsId": 1, "address": 1, "mpinCreated": 1,
	})).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := &auth.Principal{
		ID:          m.ID,
		Kind:        models.KindMember,
		Name:        m.FullName(),
		Email:       m.Email,
		Mobile:      m.MobileNumber,
		Role:        models.RoleMember,
		MemberID:    &m.ID,
		MPINCreated: m.MPINCreated,
	}
	if m.Address.Village != nil {
		p.AssignedLocation = m.Address.Village
		f.fillLocation(ctx, p)
	}
	return p, nil
}

func (f *Fetcher) fromInstitution(ctx context.Context, id primitive.ObjectID) (*auth.Principal, error) {
	var inst models.Institution
	err := f.institutions.FindOne(ctx, bson.M{"_id": id}).Decode(&inst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth.Principal{
		ID:            inst.ID,
		Kind:          models.KindInstitution,
		Name:          inst.Name,
		Mobile:        inst.MobileNumber,
		Role:          models.RoleInstitution,
		InstitutionID: &inst.ID,
	}, nil
}

// fillLocation adds the assigned location's name and type. A missing
// location leaves them empty.
func (f *Fetcher) fillLocation(ctx context.Context, p *auth.Principal) {
	if p.AssignedLocation == nil {
		return
	}
	var loc models.Location
	proj := options.FindOne().SetProjection(bson.M{"name": 1, "type": 1})
	if err := f.locations.FindOne(ctx, bson.M{"_id": *p.AssignedLocation}, proj).Decode(&loc); err == nil {
		p.LocationName = loc.Name
		p.LocationType = loc.Type
	}
}
