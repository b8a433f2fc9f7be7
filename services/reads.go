package services

import (
	"time"

	"habit-tracker/internal/database"
	"habit-tracker/internal/query"
)

// Primary reads of the habit service. Each needs a composite index; the
// fallbacks only filter on a single field.

func activeHabitsRead(userID string) []query.Constraint {
	return []query.Constraint{
		query.Where("user_id", query.OpEq, userID),
		query.Where("deleted", query.OpEq, false),
		query.OrderBy("created_at", query.Desc),
	}
}

func userLogsBetweenRead(userID string, start, end time.Time) []query.Constraint {
	return []query.Constraint{
		query.Where("user_id", query.OpEq, userID),
		query.Where("date", query.OpGte, start),
		query.Where("date", query.OpLte, end),
		query.Where("deleted", query.OpNe, true),
	}
}

func habitLogsSinceRead(habitID string, since time.Time) []query.Constraint {
	return []query.Constraint{
		query.Where("habit_id", query.OpEq, habitID),
		query.Where("date", query.OpGte, since),
		query.Where("deleted", query.OpNe, true),
		query.OrderBy("date", query.Desc),
	}
}

func userLogsSinceRead(userID string, since time.Time) []query.Constraint {
	return []query.Constraint{
		query.Where("user_id", query.OpEq, userID),
		query.Where("date", query.OpGte, since),
		query.Where("deleted", query.OpNe, true),
		query.OrderBy("date", query.Desc),
	}
}

func byField(field, value string) []query.Constraint {
	return []query.Constraint{query.Where(field, query.OpEq, value)}
}

// ReadIndexes lists the composite indexes behind the primary reads, so they
// can be built ahead of the first request.
func ReadIndexes() []query.IndexSpec {
	var zero time.Time
	reads := []struct {
		collection  string
		constraints []query.Constraint
	}{
		{database.HabitsCollection, activeHabitsRead("")},
		{database.HabitLogsCollection, userLogsBetweenRead("", zero, zero)},
		{database.HabitLogsCollection, habitLogsSinceRead("", zero)},
		{database.HabitLogsCollection, userLogsSinceRead("", zero)},
	}

	seen := make(map[string]bool)
	var specs []query.IndexSpec
	for _, r := range reads {
		spec, ok := query.RequiredIndex(r.collection, r.constraints)
		if !ok || seen[spec.Key()] {
			continue
		}
		seen[spec.Key()] = true
		specs = append(specs, spec)
	}
	return specs
}
