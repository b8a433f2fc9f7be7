package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Habit struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Category  string             `bson:"category" json:"category"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Deleted   bool               `bson:"deleted" json:"deleted"`
	DeletedAt *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// HabitLog is one day's completion mark for a habit.
type HabitLog struct {
	ID        string    `bson:"_id" json:"id"`
	HabitID   string    `bson:"habit_id" json:"habit_id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Date      time.Time `bson:"date" json:"date"`
	Completed bool      `bson:"completed" json:"completed"`
	Deleted   bool      `bson:"deleted" json:"deleted"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// LogID is the deterministic key of a user's log for a habit on a day, so
// toggling the same day twice overwrites instead of duplicating.
func LogID(habitID string, day time.Time, userID string) string {
	return fmt.Sprintf("%s_%s_%s", habitID, day.Format(DateLayout), userID)
}

const DateLayout = "2006-01-02"

type CreateHabitRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Category string `json:"category" binding:"max=50"`
}

type CompletionRequest struct {
	// Date is YYYY-MM-DD; empty means today.
	Date      string `json:"date"`
	Completed *bool  `json:"completed" binding:"required"`
}
