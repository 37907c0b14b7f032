// Package integrity inspects the database for data the API would trip over:
// members without a village, admins without a location, dependents whose
// head is gone and addresses that disagree with the location tree.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CollectionCount is one row of Counts.
type CollectionCount struct {
	Name  string
	Count int64
}

// Counts returns the document count of every collection, sorted by name.
func Counts(ctx context.Context, db *mongo.Database) ([]CollectionCount, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]CollectionCount, 0, len(names))
	for _, n := range names {
		c, err := db.Collection(n).EstimatedDocumentCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", n, err)
		}
		out = append(out, CollectionCount{Name: n, Count: c})
	}
	return out, nil
}

// MemberRef identifies a member in a report.
type MemberRef struct {
	ID       primitive.ObjectID
	MewsID   string
	Name     string
	Surname  string
	Problem  string
	Repaired bool
}

func ref(m models.Member, problem string) MemberRef {
	return MemberRef{ID: m.ID, MewsID: m.MewsID, Name: m.Name, Surname: m.Surname, Problem: problem}
}

// MembersWithoutVillage lists members whose address has no village.
func MembersWithoutVillage(ctx context.Context, members *memberstore.Store) ([]MemberRef, error) {
	list, err := members.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"address.village": bson.M{"$exists": false}},
		bson.M{"address.village": nil},
	}})
	if err != nil {
		return nil, err
	}
	out := make([]MemberRef, 0, len(list))
	for _, m := range list {
		out = append(out, ref(m, "no village"))
	}
	return out, nil
}

// AdminsWithoutLocation lists non-super admins with no assigned location.
func AdminsWithoutLocation(ctx context.Context, users *userstore.Store) ([]models.User, error) {
	return users.WithoutLocation(ctx)
}

// Report is the result of Check.
type Report struct {
	Members            int
	OrphanedDependents []MemberRef
	AddressMismatches  []MemberRef
	UnknownVillages    []MemberRef
}

// Checker walks every member against the location tree.
type Checker struct {
	Members   *memberstore.Store
	Locations *locationstore.Store
	Log       *zap.Logger
	// Repair rewrites address.mandal and address.district from the
	// village's parent chain when they disagree.
	Repair bool
}

func New(db *mongo.Database, repair bool, logger *zap.Logger) *Checker {
	return &Checker{
		Members:   memberstore.New(db),
		Locations: locationstore.New(db),
		Log:       logger,
		Repair:    repair,
	}
}

// Check runs every member-level check.
func (c *Checker) Check(ctx context.Context) (Report, error) {
	all, err := c.Members.Find(ctx, bson.M{})
	if err != nil {
		return Report{}, err
	}

	var rep Report
	rep.Members = len(all)
	known := make(map[primitive.ObjectID]bool, len(all))
	for _, m := range all {
		known[m.ID] = true
	}

	for _, m := range all {
		if m.HeadOfFamily != nil && !known[*m.HeadOfFamily] {
			rep.OrphanedDependents = append(rep.OrphanedDependents, ref(m, "head "+m.HeadOfFamily.Hex()+" missing"))
		}
		if m.Address.Village == nil {
			continue
		}

		village, err := c.Locations.Get(ctx, *m.Address.Village)
		if errors.Is(err, locationstore.ErrNotFound) {
			rep.UnknownVillages = append(rep.UnknownVillages, ref(m, "village "+m.Address.Village.Hex()+" missing"))
			continue
		}
		if err != nil {
			return rep, err
		}

		r, mismatch, err := c.checkAddress(ctx, m, village)
		if err != nil {
			return rep, err
		}
		if mismatch {
			rep.AddressMismatches = append(rep.AddressMismatches, r)
		}
	}
	return rep, nil
}

// checkAddress compares a member's mandal and district with the village's
// parent chain. Municipal wards are matched against address.municipality.
func (c *Checker) checkAddress(ctx context.Context, m models.Member, village models.Location) (MemberRef, bool, error) {
	if village.Parent == nil {
		return MemberRef{}, false, nil
	}
	parent, err := c.Locations.Get(ctx, *village.Parent)
	if err != nil {
		return MemberRef{}, false, fmt.Errorf("parent of village %s: %w", village.ID.Hex(), err)
	}

	set := bson.M{}
	field := "address.mandal"
	current := m.Address.Mandal
	if parent.Type == models.LocationMunicipality {
		field = "address.municipality"
		current = m.Address.Municipality
	}
	if current == nil || *current != parent.ID {
		set[field] = parent.ID
	}
	if parent.Parent != nil && (m.Address.District == nil || *m.Address.District != *parent.Parent) {
		set["address.district"] = *parent.Parent
	}
	if len(set) == 0 {
		return MemberRef{}, false, nil
	}

	r := ref(m, fmt.Sprintf("address disagrees with %s (%s)", village.Name, parent.Name))
	if c.Repair {
		if err := c.Members.Update(ctx, m.ID, set); err != nil {
			return r, true, fmt.Errorf("repair %s: %w", m.ID.Hex(), err)
		}
		r.Repaired = true
		c.Log.Info("repaired member address", zap.String("member", m.ID.Hex()), zap.Any("set", set))
	}
	return r, true, nil
}
