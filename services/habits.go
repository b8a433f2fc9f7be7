package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"habit-tracker/internal/database"
	"habit-tracker/internal/query"
	"habit-tracker/models"
	"habit-tracker/utils"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrInvalidHabit  = errors.New("invalid habit")
	ErrInvalidDate   = errors.New("invalid date")
)

const maxHabitName = 100

// HabitWriter covers the single-document operations on habits and logs.
type HabitWriter interface {
	InsertHabit(ctx context.Context, h *models.Habit) error
	FindHabit(ctx context.Context, id primitive.ObjectID) (*models.Habit, error)
	SoftDeleteHabit(ctx context.Context, id primitive.ObjectID, at time.Time) error
	UpsertLog(ctx context.Context, l *models.HabitLog) error
}

type HabitService struct {
	exec  *query.Executor
	store HabitWriter
	loc   *time.Location
	log   *slog.Logger
	now   func() time.Time
}

func NewHabitService(exec *query.Executor, store HabitWriter, loc *time.Location, log *slog.Logger) *HabitService {
	return &HabitService{
		exec:  exec,
		store: store,
		loc:   loc,
		log:   log,
		now:   time.Now,
	}
}

func (s *HabitService) Location() *time.Location {
	return s.loc
}

func (s *HabitService) AddHabit(ctx context.Context, userID, name, category string) (*models.Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxHabitName {
		return nil, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidHabit, maxHabitName)
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = models.DefaultCategory
	}

	h := &models.Habit{
		Name:      name,
		Category:  category,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertHabit(ctx, h); err != nil {
		return nil, err
	}

	s.log.Info("Habit added", "user_id", userID, "habit_id", h.ID.Hex(), "category", category)
	return h, nil
}

// ListHabits returns the user's active habits, newest first. An empty result
// can also mean the store was unavailable.
func (s *HabitService) ListHabits(ctx context.Context, userID string) []models.Habit {
	habits := query.Execute(ctx, s.exec, database.HabitsCollection,
		activeHabitsRead(userID),
		byField("user_id", userID),
		func(h models.Habit) bool { return !h.Deleted },
	)

	// The fallback read is unordered.
	sort.SliceStable(habits, func(i, j int) bool {
		return habits[i].CreatedAt.After(habits[j].CreatedAt)
	})
	return habits
}

func (s *HabitService) DeleteHabit(ctx context.Context, userID, habitID string) error {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return err
	}

	if err := s.store.SoftDeleteHabit(ctx, h.ID, s.now().UTC()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrHabitNotFound
		}
		return err
	}

	s.log.Info("Habit deleted", "user_id", userID, "habit_id", habitID)
	return nil
}

// LogCompletion records whether the habit was done on day (YYYY-MM-DD, empty
// for today). Repeating it for the same day overwrites the earlier mark.
func (s *HabitService) LogCompletion(ctx context.Context, userID, habitID, day string, completed bool) (*models.HabitLog, error) {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	date := utils.StartOfDay(s.now(), s.loc)
	if day != "" {
		if date, err = utils.ParseDay(day, s.loc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
		}
	}

	entry := &models.HabitLog{
		ID:        models.LogID(h.ID.Hex(), date, userID),
		HabitID:   h.ID.Hex(),
		UserID:    userID,
		Date:      date,
		Completed: completed,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.UpsertLog(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// TodayLogs returns the user's logs for the current day.
func (s *HabitService) TodayLogs(ctx context.Context, userID string) []models.HabitLog {
	now := s.now()
	start, end := utils.StartOfDay(now, s.loc), utils.EndOfDay(now, s.loc)

	return query.Execute(ctx, s.exec, database.HabitLogsCollection,
		userLogsBetweenRead(userID, start, end),
		byField("user_id", userID),
		func(l models.HabitLog) bool {
			return !l.Deleted && !l.Date.Before(start) && !l.Date.After(end)
		},
	)
}

// HabitLogs returns the logs of one of the user's habits since the given
// day, newest first.
func (s *HabitService) HabitLogs(ctx context.Context, userID, habitID string, since time.Time) ([]models.HabitLog, error) {
	h, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	id := h.ID.Hex()

	logs := query.Execute(ctx, s.exec, database.HabitLogsCollection,
		habitLogsSinceRead(id, since),
		byField("habit_id", id),
		func(l models.HabitLog) bool { return !l.Deleted && !l.Date.Before(since) },
	)
	sortLogsDesc(logs)
	return logs, nil
}

// UserLogsSince returns every active log of the user since the given day,
// newest first.
func (s *HabitService) UserLogsSince(ctx context.Context, userID string, since time.Time) []models.HabitLog {
	logs := query.Execute(ctx, s.exec, database.HabitLogsCollection,
		userLogsSinceRead(userID, since),
		byField("user_id", userID),
		func(l models.HabitLog) bool { return !l.Deleted && !l.Date.Before(since) },
	)
	sortLogsDesc(logs)
	return logs
}

func (s *HabitService) ownedHabit(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	id, err := primitive.ObjectIDFromHex(habitID)
	if err != nil {
		return nil, ErrHabitNotFound
	}

	h, err := s.store.FindHabit(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, err
	}
	// Other users' habits are reported as missing.
	if h.UserID != userID || h.Deleted {
		return nil, ErrHabitNotFound
	}
	return h, nil
}

func sortLogsDesc(logs []models.HabitLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Date.After(logs[j].Date)
	})
}
