// internal/app/store/locations/locationstore.go
package locationstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("location not found")
	ErrDuplicate = errors.New("a location with this name already exists under the parent")
	ErrBadType   = errors.New("invalid location type")
)

// MaxDescendantDepth bounds Descendants; the tree is at most five levels deep.
const MaxDescendantDepth = 4

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("locations")}
}

// Get loads one location.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Location, error) {
	var l models.Location
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Location{}, ErrNotFound
		}
		return models.Location{}, err
	}
	return l, nil
}

// GetMany loads locations by id, keyed by id. Missing ids are skipped.
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Location, error) {
	out := make(map[primitive.ObjectID]models.Location, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
	if err != nil {
		return nil, err
	}
	for _, l := range rows {
		out[l.ID] = l
	}
	return out, nil
}

// List returns locations of typ under parent, sorted by name. With neither
// set it returns the states.
func (s *Store) List(ctx context.Context, typ string, parent *primitive.ObjectID) ([]models.Location, error) {
	filter := bson.M{}
	if typ != "" {
		filter["type"] = typ
	}
	if parent != nil {
		filter["parent"] = *parent
	}
	if typ == "" && parent == nil {
		filter["type"] = models.LocationState
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

// Children returns the direct children of parent sorted by name.
func (s *Store) Children(ctx context.Context, parent primitive.ObjectID) ([]models.Location, error) {
	return s.find(ctx, bson.M{"parent": parent}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

// ChildrenOfType returns direct children of parent with the given type.
func (s *Store) ChildrenOfType(ctx context.Context, parent primitive.ObjectID, typ string) ([]models.Location, error) {
	return s.find(ctx, bson.M{"parent": parent, "type": typ}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

// FindByName looks a location up by case-insensitive name, optionally
// restricted to a type.
func (s *Store) FindByName(ctx context.Context, name, typ string) (models.Location, error) {
	filter := bson.M{"name_ci": text.Fold(strings.TrimSpace(name))}
	if typ != "" {
		filter["type"] = typ
	}
	var l models.Location
	if err := s.c.FindOne(ctx, filter).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Location{}, ErrNotFound
		}
		return models.Location{}, err
	}
	return l, nil
}

// SameNameSiblings returns villages under the same parent whose name
// contains loc's name. Duplicate village entries from imports share a
// name, and village admins govern all of them.
func (s *Store) SameNameSiblings(ctx context.Context, loc models.Location) ([]models.Location, error) {
	filter := bson.M{
		"type": models.LocationVillage,
		"name": primitive.Regex{Pattern: regexp.QuoteMeta(loc.Name), Options: "i"},
	}
	if loc.Parent != nil {
		filter["parent"] = *loc.Parent
	}
	return s.find(ctx, filter, nil)
}

// Create inserts a location and fills its ancestors from the parent.
func (s *Store) Create(ctx context.Context, name, typ string, parent *primitive.ObjectID, pincode string) (models.Location, error) {
	if !models.IsLocationType(typ) {
		return models.Location{}, ErrBadType
	}
	name = strings.TrimSpace(name)
	now := time.Now().UTC()
	l := models.Location{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Pincode:   strings.TrimSpace(pincode),
		Type:      typ,
		Parent:    parent,
		Ancestors: []models.Ancestor{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if parent != nil {
		p, err := s.Get(ctx, *parent)
		if err != nil {
			return models.Location{}, fmt.Errorf("parent: %w", err)
		}
		l.Ancestors = pathThrough(p)
	}
	n, err := s.c.CountDocuments(ctx, bson.M{"parent": parent, "type": typ, "name_ci": l.NameCI})
	if err != nil {
		return models.Location{}, err
	}
	if n > 0 {
		return models.Location{}, ErrDuplicate
	}
	if _, err := s.c.InsertOne(ctx, l); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Location{}, ErrDuplicate
		}
		return models.Location{}, err
	}
	return l, nil
}

// Upsert finds a location by (name, type, parent) or creates it. Used by
// the importer so reruns are idempotent.
func (s *Store) Upsert(ctx context.Context, name, typ string, parent *primitive.ObjectID, pincode string) (models.Location, bool, error) {
	filter := bson.M{"name_ci": text.Fold(strings.TrimSpace(name)), "type": typ, "parent": parent}
	var l models.Location
	err := s.c.FindOne(ctx, filter).Decode(&l)
	if err == nil {
		if pincode != "" && l.Pincode != pincode {
			if err := s.SetPincode(ctx, l.ID, pincode); err != nil {
				return l, false, err
			}
			l.Pincode = pincode
		}
		return l, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Location{}, false, err
	}
	l, err = s.Create(ctx, name, typ, parent, pincode)
	return l, err == nil, err
}

// SetPincode updates a location's pincode.
func (s *Store) SetPincode(ctx context.Context, id primitive.ObjectID, pincode string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"pincode":   pincode,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Descendants walks the tree breadth-first from root, at most maxDepth
// levels down, and returns every location found (root excluded).
func (s *Store) Descendants(ctx context.Context, root primitive.ObjectID, maxDepth int) ([]models.Location, error) {
	if maxDepth <= 0 || maxDepth > MaxDescendantDepth {
		maxDepth = MaxDescendantDepth
	}
	var out []models.Location
	frontier := []primitive.ObjectID{root}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		level, err := s.find(ctx, bson.M{"parent": bson.M{"$in": frontier}}, nil)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, l := range level {
			out = append(out, l)
			frontier = append(frontier, l.ID)
		}
	}
	return out, nil
}

// DescendantIDs is Descendants reduced to ids.
func (s *Store) DescendantIDs(ctx context.Context, root primitive.ObjectID, maxDepth int) ([]primitive.ObjectID, error) {
	locs, err := s.Descendants(ctx, root, maxDepth)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(locs))
	for _, l := range locs {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// RebuildAncestors recomputes the materialized path of one location from
// its parent chain. It returns true when the stored path changed.
func (s *Store) RebuildAncestors(ctx context.Context, id primitive.ObjectID) (bool, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	var chain []models.Ancestor
	seen := map[primitive.ObjectID]bool{id: true}
	next := l.Parent
	for next != nil {
		if seen[*next] {
			return false, fmt.Errorf("cycle at %s", next.Hex())
		}
		seen[*next] = true
		p, err := s.Get(ctx, *next)
		if err != nil {
			return false, fmt.Errorf("parent %s: %w", next.Hex(), err)
		}
		chain = append([]models.Ancestor{{LocationID: p.ID, Name: p.Name, Type: p.Type}}, chain...)
		next = p.Parent
	}
	if chain == nil {
		chain = []models.Ancestor{}
	}
	if sameAncestors(l.Ancestors, chain) {
		return false, nil
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"ancestors": chain,
		"updatedAt": time.Now().UTC(),
	}})
	return err == nil, err
}

// RebuildAll recomputes every location's path and reports how many changed.
func (s *Store) RebuildAll(ctx context.Context) (int, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	var ids []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &ids); err != nil {
		return 0, err
	}
	changed := 0
	for _, row := range ids {
		ok, err := s.RebuildAncestors(ctx, row.ID)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// Count returns the number of locations matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Location, error) {
	if opts == nil {
		opts = options.Find()
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Location{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pathThrough(parent models.Location) []models.Ancestor {
	out := make([]models.Ancestor, 0, len(parent.Ancestors)+1)
	out = append(out, parent.Ancestors...)
	return append(out, models.Ancestor{LocationID: parent.ID, Name: parent.Name, Type: parent.Type})
}

func sameAncestors(a, b []models.Ancestor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
