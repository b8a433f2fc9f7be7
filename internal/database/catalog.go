package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/singleflight"

	"habit-tracker/internal/query"
)

// ListFunc returns the key patterns of every index on a collection.
type ListFunc func(ctx context.Context, collection string) ([][]query.IndexField, error)

type catalogEntry struct {
	keys    [][]query.IndexField
	fetched time.Time
}

// IndexCatalog caches the index key patterns of each collection for ttl.
// Refreshes run outside the lock, one at a time per collection.
type IndexCatalog struct {
	list    ListFunc
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]catalogEntry
	refresh singleflight.Group
}

func NewIndexCatalog(list ListFunc, ttl time.Duration) *IndexCatalog {
	return &IndexCatalog{
		list:    list,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]catalogEntry),
	}
}

// MongoLister lists index specifications straight from the server.
func MongoLister(db *mongo.Database) ListFunc {
	return func(ctx context.Context, collection string) ([][]query.IndexField, error) {
		specs, err := db.Collection(collection).Indexes().ListSpecifications(ctx)
		if err != nil {
			return nil, err
		}

		keys := make([][]query.IndexField, 0, len(specs))
		for _, s := range specs {
			if fields, ok := parseKeys(s.KeysDocument); ok {
				keys = append(keys, fields)
			}
		}
		return keys, nil
	}
}

// Keys returns the cached key patterns for collection, refreshing them once
// the entry is older than the ttl.
func (c *IndexCatalog) Keys(ctx context.Context, collection string) ([][]query.IndexField, error) {
	if keys, ok := c.cached(collection); ok {
		return keys, nil
	}

	v, err, _ := c.refresh.Do(collection, func() (interface{}, error) {
		// Another caller may have refreshed it while we waited.
		if keys, ok := c.cached(collection); ok {
			return keys, nil
		}

		keys, err := c.list(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("list indexes on %s: %w", collection, err)
		}

		c.mu.Lock()
		c.entries[collection] = catalogEntry{keys: keys, fetched: c.now()}
		c.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]query.IndexField), nil
}

func (c *IndexCatalog) cached(collection string) ([][]query.IndexField, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[collection]
	if !ok || c.now().Sub(entry.fetched) >= c.ttl {
		return nil, false
	}
	return entry.keys, true
}

// Covers reports whether any index on the spec's collection can serve it.
func (c *IndexCatalog) Covers(ctx context.Context, spec query.IndexSpec) (bool, error) {
	keys, err := c.Keys(ctx, spec.Collection)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if spec.CoveredBy(k) {
			return true, nil
		}
	}
	return false, nil
}

func (c *IndexCatalog) Invalidate(collection string) {
	c.mu.Lock()
	delete(c.entries, collection)
	c.mu.Unlock()
}

// parseKeys turns an index key document into fields. Text, hashed and
// geo indexes cannot serve ordered reads and are reported as !ok.
func parseKeys(doc bson.Raw) ([]query.IndexField, bool) {
	elems, err := doc.Elements()
	if err != nil || len(elems) == 0 {
		return nil, false
	}

	fields := make([]query.IndexField, 0, len(elems))
	for _, el := range elems {
		v := el.Value()
		var order float64
		switch v.Type {
		case bsontype.Int32:
			order = float64(v.Int32())
		case bsontype.Int64:
			order = float64(v.Int64())
		case bsontype.Double:
			order = v.Double()
		default:
			return nil, false
		}

		dir := query.Asc
		if order < 0 {
			dir = query.Desc
		}
		fields = append(fields, query.IndexField{Path: el.Key(), Order: dir})
	}
	return fields, true
}
