package models

type UserStats struct {
	WeeklyCompletion float64 `json:"weekly_completion"`
	TotalDays        int     `json:"total_days"`
	BestHabit        string  `json:"best_habit"`
	CurrentStreak    int     `json:"current_streak"`
}

type HabitStats struct {
	HabitID          string  `json:"habit_id"`
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	Completions      int     `json:"completions"`
	WeeklyCompletion float64 `json:"weekly_completion"`
	CurrentStreak    int     `json:"current_streak"`
}

type StatsResponse struct {
	Days     int            `json:"days"`
	Summary  UserStats      `json:"summary"`
	Habits   []HabitStats   `json:"habits"`
	Heatmap  map[string]int `json:"heatmap"`
	Weekdays [7]int         `json:"weekdays"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
}
