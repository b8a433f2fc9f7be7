package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"habit-tracker/models"
	"habit-tracker/utils"
)

const (
	logsSheet    = "Habit Logs"
	summarySheet = "Summary"
)

// ExportLogs writes the user's habit logs of the last days calendar days as
// an .xlsx workbook.
func (a *AnalyticsService) ExportLogs(ctx context.Context, userID string, days int, w io.Writer) error {
	days = ClampDays(days)
	habits, logs := a.load(ctx, userID, days)
	now := a.now()
	stats := BuildStats(habits, logs, days, now, a.habits.Location())
	return WriteWorkbook(w, habits, logs, stats, now, a.habits.Location())
}

// WriteWorkbook renders logs and their summary. Logs of habits not in habits
// are skipped.
func WriteWorkbook(w io.Writer, habits []models.Habit, logs []models.HabitLog, stats models.StatsResponse, now time.Time, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(logsSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	names := make(map[string]models.Habit, len(habits))
	for _, h := range habits {
		names[h.ID.Hex()] = h
	}

	headers := []interface{}{"Date", "Habit", "Category", "Completed"}
	if err := f.SetSheetRow(logsSheet, "A1", &headers); err != nil {
		return err
	}

	row := 2
	for _, l := range logs {
		h, ok := names[l.HabitID]
		if !ok {
			continue
		}
		category := models.LookupCategory(h.Category)
		values := []interface{}{
			utils.DayKey(l.Date, loc),
			h.Name,
			category.Emoji + " " + category.Label,
			l.Completed,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(logsSheet, cell, &values); err != nil {
			return err
		}
		row++
	}
	if err := f.SetColWidth(logsSheet, "A", "D", 18); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Exported At", now.In(loc).Format("2006-01-02 15:04:05")},
		{"Days", stats.Days},
		{"Weekly Completion %", stats.Summary.WeeklyCompletion},
		{"Days With Completions", stats.Summary.TotalDays},
		{"Best Habit", stats.Summary.BestHabit},
		{"Current Streak", stats.Summary.CurrentStreak},
		{"", ""},
		{"Habit", "Completions", "Weekly Completion %", "Current Streak"},
	}
	for _, hs := range stats.Habits {
		summary = append(summary, []interface{}{hs.Name, hs.Completions, hs.WeeklyCompletion, hs.CurrentStreak})
	}
	for i, values := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "D", 22); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}
