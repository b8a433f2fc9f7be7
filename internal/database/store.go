// Package database adapts MongoDB to the query executor and holds the
// collection-level stores used by the services.
package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"habit-tracker/internal/query"
)

// Collection names
const (
	UsersCollection         = "users"
	HabitsCollection        = "habits"
	HabitLogsCollection     = "habit_logs"
	IndexRequestsCollection = "index_requests"
)

// Server error codes for a read the planner cannot serve.
const (
	codeIndexNotFound         = 27
	codeNoQueryExecutionPlans = 291
)

// Store serves constraint reads and refuses those that need a composite
// index the collection does not have yet.
type Store struct {
	db      *mongo.Database
	catalog *IndexCatalog
}

func NewStore(db *mongo.Database, catalog *IndexCatalog) *Store {
	return &Store{db: db, catalog: catalog}
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Read(ctx context.Context, collection string, constraints []query.Constraint) ([]bson.Raw, error) {
	if spec, ok := query.RequiredIndex(collection, constraints); ok {
		covered, err := s.catalog.Covers(ctx, spec)
		if err != nil {
			return nil, err
		}
		if !covered {
			return nil, &query.IndexMissingError{Spec: spec}
		}
	}

	filter, opts := buildFind(constraints)
	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, s.classify(collection, constraints, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.Raw
	for cursor.Next(ctx) {
		docs = append(docs, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, s.classify(collection, constraints, err)
	}
	return docs, nil
}

// EnsureIndex creates the composite index described by spec and returns its name.
func (s *Store) EnsureIndex(ctx context.Context, spec query.IndexSpec) (string, error) {
	keys := bson.D{}
	for _, f := range spec.Fields {
		keys = append(keys, bson.E{Key: f.Path, Value: int(f.Order)})
	}

	name, err := s.db.Collection(spec.Collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(spec.Name()),
	})
	s.catalog.Invalidate(spec.Collection)
	if err != nil {
		return "", fmt.Errorf("create index %s: %w", spec.Key(), err)
	}
	return name, nil
}

// HasIndex checks the server, bypassing the cache.
func (s *Store) HasIndex(ctx context.Context, spec query.IndexSpec) (bool, error) {
	s.catalog.Invalidate(spec.Collection)
	return s.catalog.Covers(ctx, spec)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) classify(collection string, constraints []query.Constraint, err error) error {
	if !isIndexMissing(err) {
		return fmt.Errorf("read %s: %w", collection, err)
	}

	// The cached catalog said yes but the server said no.
	s.catalog.Invalidate(collection)
	spec, _ := query.RequiredIndex(collection, constraints)
	return &query.IndexMissingError{Spec: spec, Err: err}
}

func isIndexMissing(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeIndexNotFound) || se.HasErrorCode(codeNoQueryExecutionPlans)
}

var mongoOps = map[query.Op]string{
	query.OpEq:  "$eq",
	query.OpNe:  "$ne",
	query.OpGt:  "$gt",
	query.OpGte: "$gte",
	query.OpLt:  "$lt",
	query.OpLte: "$lte",
}

// buildFind groups filters per field in first-seen order so that a range
// such as date >= a, date <= b becomes one {date: {$gte: a, $lte: b}}.
func buildFind(constraints []query.Constraint) (bson.D, *options.FindOptions) {
	opts := options.Find()
	filter := bson.D{}
	position := make(map[string]int)
	sort := bson.D{}

	for _, c := range constraints {
		switch c.Kind {
		case query.KindFilter:
			cond := bson.E{Key: mongoOps[c.Op], Value: c.Value}
			if i, ok := position[c.Field]; ok {
				filter[i].Value = append(filter[i].Value.(bson.D), cond)
				continue
			}
			position[c.Field] = len(filter)
			filter = append(filter, bson.E{Key: c.Field, Value: bson.D{cond}})
		case query.KindSort:
			dir := c.Dir
			if dir == 0 {
				dir = query.Asc
			}
			sort = append(sort, bson.E{Key: c.Field, Value: int(dir)})
		case query.KindLimit:
			opts.SetLimit(c.N)
		}
	}

	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	return filter, opts
}
