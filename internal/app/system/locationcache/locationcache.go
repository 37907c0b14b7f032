// Package locationcache keeps recently used locations in memory. Location
// names are read on nearly every member response and change rarely.
package locationcache

import (
	"context"
	"time"

	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTTL is how long a location stays cached.
const DefaultTTL = 10 * time.Minute

// Source is the part of the locations store the cache reads through.
type Source interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Location, error)
	SameNameSiblings(ctx context.Context, loc models.Location) ([]models.Location, error)
	ChildrenOfType(ctx context.Context, parent primitive.ObjectID, typ string) ([]models.Location, error)
}

// Cache is a read-through location cache. It satisfies authz.LocationSource.
type Cache struct {
	src   Source
	cache *cache.Cache
}

// New wraps src. A zero ttl uses DefaultTTL.
func New(src Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{src: src, cache: cache.New(ttl, ttl+5*time.Minute)}
}

// Get returns the location, loading it on a miss. Errors are not cached.
func (c *Cache) Get(ctx context.Context, id primitive.ObjectID) (models.Location, error) {
	key := id.Hex()
	if x, found := c.cache.Get(key); found {
		return x.(models.Location), nil
	}
	l, err := c.src.Get(ctx, id)
	if err != nil {
		return models.Location{}, err
	}
	c.cache.Set(key, l, cache.DefaultExpiration)
	return l, nil
}

// Name returns the location's name, or "" when it cannot be loaded.
func (c *Cache) Name(ctx context.Context, id *primitive.ObjectID) string {
	if id == nil || id.IsZero() {
		return ""
	}
	l, err := c.Get(ctx, *id)
	if err != nil {
		return ""
	}
	return l.Name
}

// SameNameSiblings is not cached; the result depends on the whole mandal.
func (c *Cache) SameNameSiblings(ctx context.Context, loc models.Location) ([]models.Location, error) {
	return c.src.SameNameSiblings(ctx, loc)
}

// ChildrenOfType lists children and warms the cache with them.
func (c *Cache) ChildrenOfType(ctx context.Context, parent primitive.ObjectID, typ string) ([]models.Location, error) {
	kids, err := c.src.ChildrenOfType(ctx, parent, typ)
	if err != nil {
		return nil, err
	}
	for _, k := range kids {
		c.cache.Set(k.ID.Hex(), k, cache.DefaultExpiration)
	}
	return kids, nil
}

// Invalidate drops one location, e.g. after its pincode or path changed.
func (c *Cache) Invalidate(id primitive.ObjectID) { c.cache.Delete(id.Hex()) }

// Flush empties the cache.
func (c *Cache) Flush() { c.cache.Flush() }
