package services

import (
	"context"
	"math"
	"sort"
	"time"

	"habit-tracker/models"
	"habit-tracker/utils"
)

const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365
)

// ClampDays maps a requested window to 1..MaxStatsDays, defaulting when unset.
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultStatsDays
	}
	if days > MaxStatsDays {
		return MaxStatsDays
	}
	return days
}

// WeeklyCompletion is the share of the last 7 calendar days (today included)
// with a completed check, as a percentage.
func WeeklyCompletion(logs []models.HabitLog, now time.Time, loc *time.Location) float64 {
	weekStart := utils.StartOfDay(now, loc).AddDate(0, 0, -6)
	days := make(map[string]bool)
	for _, l := range logs {
		if l.Completed && !l.Date.Before(weekStart) && !l.Date.After(now) {
			days[utils.DayKey(l.Date, loc)] = true
		}
	}
	return float64(len(days)) / 7 * 100
}

// CurrentStreak counts completed checks from the most recent one backwards
// until the first check that is not completed.
func CurrentStreak(logs []models.HabitLog) int {
	sorted := append([]models.HabitLog(nil), logs...)
	sortLogsDesc(sorted)

	streak := 0
	for _, l := range sorted {
		if !l.Completed {
			break
		}
		streak++
	}
	return streak
}

// Heatmap counts completions per day. Days with only open checks are present
// with zero.
func Heatmap(logs []models.HabitLog, loc *time.Location) map[string]int {
	heat := make(map[string]int)
	for _, l := range logs {
		key := utils.DayKey(l.Date, loc)
		if l.Completed {
			heat[key]++
		} else if _, ok := heat[key]; !ok {
			heat[key] = 0
		}
	}
	return heat
}

// WeekdaySeries counts completions per weekday, Monday first.
func WeekdaySeries(logs []models.HabitLog, loc *time.Location) [7]int {
	var series [7]int
	for _, l := range logs {
		if !l.Completed {
			continue
		}
		wd := (int(l.Date.In(loc).Weekday()) + 6) % 7
		series[wd]++
	}
	return series
}

// BuildStats summarises the logs of the given habits. Logs of other habits are
// ignored.
func BuildStats(habits []models.Habit, logs []models.HabitLog, days int, now time.Time, loc *time.Location) models.StatsResponse {
	byHabit := make(map[string][]models.HabitLog, len(habits))
	for _, h := range habits {
		byHabit[h.ID.Hex()] = nil
	}

	var active []models.HabitLog
	for _, l := range logs {
		if _, ok := byHabit[l.HabitID]; ok {
			byHabit[l.HabitID] = append(byHabit[l.HabitID], l)
			active = append(active, l)
		}
	}

	resp := models.StatsResponse{
		Days:     days,
		Habits:   make([]models.HabitStats, 0, len(habits)),
		Heatmap:  Heatmap(active, loc),
		Weekdays: WeekdaySeries(active, loc),
	}

	var weeklySum float64
	for _, h := range habits {
		hl := byHabit[h.ID.Hex()]
		hs := models.HabitStats{
			HabitID:          h.ID.Hex(),
			Name:             h.Name,
			Category:         h.Category,
			Completions:      countCompleted(hl),
			WeeklyCompletion: round1(WeeklyCompletion(hl, now, loc)),
			CurrentStreak:    CurrentStreak(hl),
		}
		resp.Habits = append(resp.Habits, hs)

		weeklySum += WeeklyCompletion(hl, now, loc)
		if hs.CurrentStreak > resp.Summary.CurrentStreak {
			resp.Summary.CurrentStreak = hs.CurrentStreak
		}
	}
	if len(habits) > 0 {
		resp.Summary.WeeklyCompletion = round1(weeklySum / float64(len(habits)))
	}
	resp.Summary.BestHabit = bestHabit(resp.Habits)

	for _, n := range resp.Heatmap {
		if n > 0 {
			resp.Summary.TotalDays++
		}
	}
	return resp
}

// bestHabit has the most completions; ties go to the alphabetically first name.
func bestHabit(stats []models.HabitStats) string {
	ranked := append([]models.HabitStats(nil), stats...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Completions != ranked[j].Completions {
			return ranked[i].Completions > ranked[j].Completions
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) == 0 || ranked[0].Completions == 0 {
		return ""
	}
	return ranked[0].Name
}

func countCompleted(logs []models.HabitLog) int {
	n := 0
	for _, l := range logs {
		if l.Completed {
			n++
		}
	}
	return n
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type AnalyticsService struct {
	habits *HabitService
	now    func() time.Time
}

func NewAnalyticsService(habits *HabitService) *AnalyticsService {
	return &AnalyticsService{habits: habits, now: time.Now}
}

// Stats covers the last days calendar days, today included.
func (a *AnalyticsService) Stats(ctx context.Context, userID string, days int) models.StatsResponse {
	days = ClampDays(days)
	habits, logs := a.load(ctx, userID, days)
	return BuildStats(habits, logs, days, a.now(), a.habits.Location())
}

func (a *AnalyticsService) load(ctx context.Context, userID string, days int) ([]models.Habit, []models.HabitLog) {
	since := utils.StartOfDay(a.now(), a.habits.Location()).AddDate(0, 0, -(days - 1))
	return a.habits.ListHabits(ctx, userID), a.habits.UserLogsSince(ctx, userID, since)
}
