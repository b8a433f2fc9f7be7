package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"habit-tracker/models"
)

var ErrNotFound = errors.New("database: document not found")

// HabitRepo owns writes and single-document lookups on habits and habit logs.
// Multi-document reads go through the query executor instead.
type HabitRepo struct {
	habits *mongo.Collection
	logs   *mongo.Collection
}

func NewHabitRepo(db *mongo.Database) *HabitRepo {
	return &HabitRepo{
		habits: db.Collection(HabitsCollection),
		logs:   db.Collection(HabitLogsCollection),
	}
}

func (r *HabitRepo) InsertHabit(ctx context.Context, h *models.Habit) error {
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	if _, err := r.habits.InsertOne(ctx, h); err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}
	return nil
}

func (r *HabitRepo) FindHabit(ctx context.Context, id primitive.ObjectID) (*models.Habit, error) {
	var h models.Habit
	err := r.habits.FindOne(ctx, bson.M{"_id": id}).Decode(&h)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find habit: %w", err)
	}
	return &h, nil
}

// SoftDeleteHabit flags the habit and every log recorded against it.
func (r *HabitRepo) SoftDeleteHabit(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := r.habits.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": at}},
	)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	_, err = r.logs.UpdateMany(ctx,
		bson.M{"habit_id": id.Hex()},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("delete habit logs: %w", err)
	}
	return nil
}

func (r *HabitRepo) UpsertLog(ctx context.Context, l *models.HabitLog) error {
	_, err := r.logs.ReplaceOne(ctx, bson.M{"_id": l.ID}, l, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert habit log: %w", err)
	}
	return nil
}

// Clear removes every habit and habit log.
func (r *HabitRepo) Clear(ctx context.Context) (habits, logs int64, err error) {
	lr, err := r.logs.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, 0, fmt.Errorf("clear habit logs: %w", err)
	}
	hr, err := r.habits.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, lr.DeletedCount, fmt.Errorf("clear habits: %w", err)
	}
	return hr.DeletedCount, lr.DeletedCount, nil
}
