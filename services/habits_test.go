package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"habit-tracker/models"
)

var day0 = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func addHabits(t *testing.T, s *HabitService, userID string, names ...string) []*models.Habit {
	t.Helper()
	base := s.now()
	var out []*models.Habit
	for i, name := range names {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		h, err := s.AddHabit(context.Background(), userID, name, "health")
		require.NoError(t, err)
		out = append(out, h)
	}
	s.now = func() time.Time { return base }
	return out
}

func TestListHabitsSameResultWithAndWithoutIndex(t *testing.T) {
	for _, indexed := range []bool{true, false} {
		store := newMemStore(indexed)
		s := newHabitService(store, day0, time.UTC)
		ctx := context.Background()

		hs := addHabits(t, s, "el", "Run", "Read", "Meditate")
		addHabits(t, s, "lin", "Stretch")
		require.NoError(t, s.DeleteHabit(ctx, "el", hs[1].ID.Hex()))

		got := s.ListHabits(ctx, "el")

		names := []string{}
		for _, h := range got {
			names = append(names, h.Name)
			assert.Equal(t, "el", h.UserID)
			assert.False(t, h.Deleted)
		}
		assert.Equal(t, []string{"Meditate", "Run"}, names, "indexed=%v", indexed)
	}
}

func TestListHabitsFallbackReadsTwice(t *testing.T) {
	store := newMemStore(false)
	s := newHabitService(store, day0, time.UTC)
	addHabits(t, s, "el", "Run")

	before := store.readCount()
	s.ListHabits(context.Background(), "el")
	assert.Equal(t, 2, store.readCount()-before)
}

func TestListHabitsEmptyIsNonNil(t *testing.T) {
	s := newHabitService(newMemStore(true), day0, time.UTC)
	got := s.ListHabits(context.Background(), "nobody")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAddHabitValidates(t *testing.T) {
	s := newHabitService(newMemStore(true), day0, time.UTC)
	ctx := context.Background()

	_, err := s.AddHabit(ctx, "el", "   ", "health")
	assert.ErrorIs(t, err, ErrInvalidHabit)

	h, err := s.AddHabit(ctx, "el", "  Drink water ", "")
	require.NoError(t, err)
	assert.Equal(t, "Drink water", h.Name)
	assert.Equal(t, models.DefaultCategory, h.Category)

	h, err = s.AddHabit(ctx, "el", "Knit", "Crafts")
	require.NoError(t, err)
	assert.Equal(t, "crafts", h.Category, "unknown categories are kept")
}

func TestDeleteHabitOwnership(t *testing.T) {
	store := newMemStore(true)
	s := newHabitService(store, day0, time.UTC)
	ctx := context.Background()
	h := addHabits(t, s, "el", "Run")[0]

	assert.ErrorIs(t, s.DeleteHabit(ctx, "lin", h.ID.Hex()), ErrHabitNotFound)
	assert.ErrorIs(t, s.DeleteHabit(ctx, "el", "not-an-id"), ErrHabitNotFound)
	assert.ErrorIs(t, s.DeleteHabit(ctx, "el", primitive.NewObjectID().Hex()), ErrHabitNotFound)

	require.NoError(t, s.DeleteHabit(ctx, "el", h.ID.Hex()))
	assert.ErrorIs(t, s.DeleteHabit(ctx, "el", h.ID.Hex()), ErrHabitNotFound, "already deleted")
}

func TestDeleteHabitHidesItsLogs(t *testing.T) {
	store := newMemStore(false)
	s := newHabitService(store, day0, time.UTC)
	ctx := context.Background()
	h := addHabits(t, s, "el", "Run")[0]

	_, err := s.LogCompletion(ctx, "el", h.ID.Hex(), "", true)
	require.NoError(t, err)
	require.Len(t, s.TodayLogs(ctx, "el"), 1)

	require.NoError(t, s.DeleteHabit(ctx, "el", h.ID.Hex()))
	assert.Empty(t, s.TodayLogs(ctx, "el"))
}

func TestLogCompletionIsIdempotentPerDay(t *testing.T) {
	store := newMemStore(true)
	s := newHabitService(store, day0, time.UTC)
	ctx := context.Background()
	h := addHabits(t, s, "el", "Run")[0]

	first, err := s.LogCompletion(ctx, "el", h.ID.Hex(), "", true)
	require.NoError(t, err)
	second, err := s.LogCompletion(ctx, "el", h.ID.Hex(), "2024-05-10", false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, h.ID.Hex()+"_2024-05-10_el", first.ID)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Len(t, store.logs, 1)
	assert.False(t, store.logs[first.ID].Completed)
}

func TestLogCompletionRejectsBadInput(t *testing.T) {
	s := newHabitService(newMemStore(true), day0, time.UTC)
	ctx := context.Background()
	h := addHabits(t, s, "el", "Run")[0]

	_, err := s.LogCompletion(ctx, "el", h.ID.Hex(), "10/05/2024", true)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = s.LogCompletion(ctx, "lin", h.ID.Hex(), "", true)
	assert.ErrorIs(t, err, ErrHabitNotFound)
}

func TestTodayLogsUsesConfiguredZone(t *testing.T) {
	zone := time.FixedZone("UTC+10", 10*60*60)
	// 23:30 UTC on the 9th is already the 10th in UTC+10.
	now := time.Date(2024, 5, 9, 23, 30, 0, 0, time.UTC)
	store := newMemStore(false)
	s := newHabitService(store, now, zone)
	ctx := context.Background()
	h := addHabits(t, s, "el", "Run")[0]

	_, err := s.LogCompletion(ctx, "el", h.ID.Hex(), "2024-05-09", true)
	require.NoError(t, err)
	today, err := s.LogCompletion(ctx, "el", h.ID.Hex(), "", true)
	require.NoError(t, err)
	assert.Contains(t, today.ID, "_2024-05-10_")

	got := s.TodayLogs(ctx, "el")
	require.Len(t, got, 1)
	assert.Equal(t, today.ID, got[0].ID)
}

func TestHabitLogsSinceNewestFirst(t *testing.T) {
	for _, indexed := range []bool{true, false} {
		store := newMemStore(indexed)
		s := newHabitService(store, day0, time.UTC)
		ctx := context.Background()
		h := addHabits(t, s, "el", "Run")[0]

		for _, d := range []string{"2024-05-01", "2024-05-08", "2024-05-09", "2024-05-10"} {
			_, err := s.LogCompletion(ctx, "el", h.ID.Hex(), d, true)
			require.NoError(t, err)
		}

		got, err := s.HabitLogs(ctx, "el", h.ID.Hex(), time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		var days []string
		for _, l := range got {
			days = append(days, l.Date.Format(models.DateLayout))
		}
		assert.Equal(t, []string{"2024-05-10", "2024-05-09", "2024-05-08"}, days, "indexed=%v", indexed)
	}
}

func TestReadIndexes(t *testing.T) {
	var keys []string
	for _, spec := range ReadIndexes() {
		keys = append(keys, spec.Key())
	}
	assert.Equal(t, []string{
		"habits.user_id_1_deleted_1_created_at_-1",
		"habit_logs.user_id_1_date_1_deleted_1",
		"habit_logs.habit_id_1_date_-1_deleted_1",
		"habit_logs.user_id_1_date_-1_deleted_1",
	}, keys)
}
