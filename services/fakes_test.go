package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"habit-tracker/internal/database"
	"habit-tracker/internal/query"
	"habit-tracker/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore keeps habits and logs in memory and serves constraint reads. With
// indexed false every read needing a composite index is refused.
type memStore struct {
	mu      sync.Mutex
	indexed bool
	habits  []models.Habit
	logs    map[string]models.HabitLog
	reads   []string
}

func newMemStore(indexed bool) *memStore {
	return &memStore{indexed: indexed, logs: make(map[string]models.HabitLog)}
}

func (m *memStore) InsertHabit(_ context.Context, h *models.Habit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	m.habits = append(m.habits, *h)
	return nil
}

func (m *memStore) FindHabit(_ context.Context, id primitive.ObjectID) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.habits {
		if h.ID == id {
			h := h
			return &h, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) SoftDeleteHabit(_ context.Context, id primitive.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.habits {
		if m.habits[i].ID == id {
			m.habits[i].Deleted = true
			m.habits[i].DeletedAt = &at
			found = true
		}
	}
	if !found {
		return database.ErrNotFound
	}
	for k, l := range m.logs {
		if l.HabitID == id.Hex() {
			l.Deleted = true
			m.logs[k] = l
		}
	}
	return nil
}

func (m *memStore) UpsertLog(_ context.Context, l *models.HabitLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[l.ID] = *l
	return nil
}

func (m *memStore) Read(_ context.Context, collection string, constraints []query.Constraint) ([]bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, query.Describe(constraints))

	if spec, ok := query.RequiredIndex(collection, constraints); ok && !m.indexed {
		return nil, &query.IndexMissingError{Spec: spec}
	}

	type row struct {
		doc any
		get func(string) any
	}
	var rows []row
	switch collection {
	case database.HabitsCollection:
		for _, h := range m.habits {
			h := h
			rows = append(rows, row{h, func(f string) any { return habitField(h, f) }})
		}
	case database.HabitLogsCollection:
		keys := make([]string, 0, len(m.logs))
		for k := range m.logs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			l := m.logs[k]
			rows = append(rows, row{l, func(f string) any { return logField(l, f) }})
		}
	default:
		return nil, fmt.Errorf("unknown collection %s", collection)
	}

	var kept []row
	for _, r := range rows {
		if matches(r.get, constraints) {
			kept = append(kept, r)
		}
	}
	for _, c := range constraints {
		if c.Kind == query.KindSort {
			c := c
			sort.SliceStable(kept, func(i, j int) bool {
				cmp := compare(kept[i].get(c.Field), kept[j].get(c.Field))
				if c.Dir == query.Desc {
					return cmp > 0
				}
				return cmp < 0
			})
		}
	}

	out := make([]bson.Raw, 0, len(kept))
	for _, r := range kept {
		b, err := bson.Marshal(r.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func habitField(h models.Habit, f string) any {
	switch f {
	case "user_id":
		return h.UserID
	case "deleted":
		return h.Deleted
	case "created_at":
		return h.CreatedAt
	}
	return nil
}

func logField(l models.HabitLog, f string) any {
	switch f {
	case "user_id":
		return l.UserID
	case "habit_id":
		return l.HabitID
	case "deleted":
		return l.Deleted
	case "date":
		return l.Date
	case "completed":
		return l.Completed
	}
	return nil
}

func matches(get func(string) any, constraints []query.Constraint) bool {
	for _, c := range constraints {
		if c.Kind != query.KindFilter {
			continue
		}
		cmp := compare(get(c.Field), c.Value)
		ok := false
		switch c.Op {
		case query.OpEq:
			ok = cmp == 0
		case query.OpNe:
			ok = cmp != 0
		case query.OpGt:
			ok = cmp > 0
		case query.OpGte:
			ok = cmp >= 0
		case query.OpLt:
			ok = cmp < 0
		case query.OpLte:
			ok = cmp <= 0
		}
		if !ok {
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv, _ := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	}
	return 0
}

func (m *memStore) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reads)
}

func newHabitService(store *memStore, now time.Time, loc *time.Location) *HabitService {
	exec := query.NewExecutor(store, query.WithLogger(quietLogger()))
	s := NewHabitService(exec, store, loc, quietLogger())
	s.now = func() time.Time { return now }
	return s
}
