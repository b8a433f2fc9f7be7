package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"habit-tracker/internal/database"
	"habit-tracker/internal/query"
	"habit-tracker/models"
)

type StatusUpdate struct {
	Status    string
	Attempts  int
	LastError string
	At        time.Time
}

// StatusStore keeps the observable state of every index request.
type StatusStore interface {
	// Touch counts a new request for spec, creating the record when it is
	// the first, and returns the record as it was before.
	Touch(ctx context.Context, spec query.IndexSpec, at time.Time) (*models.IndexRequest, error)
	SetStatus(ctx context.Context, key string, u StatusUpdate) error
	List(ctx context.Context, statuses ...string) ([]models.IndexRequest, error)
}

type MongoStatusStore struct {
	col *mongo.Collection
}

func NewMongoStatusStore(db *mongo.Database) *MongoStatusStore {
	return &MongoStatusStore{col: db.Collection(database.IndexRequestsCollection)}
}

func (s *MongoStatusStore) Touch(ctx context.Context, spec query.IndexSpec, at time.Time) (*models.IndexRequest, error) {
	var prev models.IndexRequest
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": spec.Key()},
		bson.M{
			"$inc": bson.M{"request_count": 1},
			"$set": bson.M{"updated_at": at},
			"$setOnInsert": bson.M{
				"collection":   spec.Collection,
				"fields":       spec.Fields,
				"equality":     spec.Equality,
				"status":       models.IndexQueued,
				"attempts":     0,
				"requested_at": at,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before),
	).Decode(&prev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("touch index request %s: %w", spec.Key(), err)
	}
	return &prev, nil
}

func (s *MongoStatusStore) SetStatus(ctx context.Context, key string, u StatusUpdate) error {
	set := bson.M{
		"status":     u.Status,
		"attempts":   u.Attempts,
		"updated_at": u.At,
	}
	update := bson.M{"$set": set}
	if u.LastError != "" {
		set["last_error"] = u.LastError
	} else {
		update["$unset"] = bson.M{"last_error": ""}
	}
	if u.Status == models.IndexQueued {
		set["requested_at"] = u.At
	}

	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": key}, update); err != nil {
		return fmt.Errorf("set index request %s to %s: %w", key, u.Status, err)
	}
	return nil
}

func (s *MongoStatusStore) List(ctx context.Context, statuses ...string) ([]models.IndexRequest, error) {
	filter := bson.M{}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "requested_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list index requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []models.IndexRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("decode index requests: %w", err)
	}
	return requests, nil
}
