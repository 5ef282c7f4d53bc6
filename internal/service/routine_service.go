package service

import (
	"context"
	"fmt"
	"strings"

	"chore-planner/internal/model"
)

// DailyOverloadThresholdMins is the daily load above which the routine
// overview shows a workload warning.
const DailyOverloadThresholdMins = 120

// LoadTotals is the projected recurring workload in minutes per
// calendar period.
type LoadTotals struct {
	DailyMins   int
	WeeklyMins  int
	MonthlyMins int
}

func (t LoadTotals) Overloaded() bool {
	return t.DailyMins > DailyOverloadThresholdMins
}

// ComputeLoadTotals projects the per-period workload of a set of
// repeating tasks. A task contributes its duration once per whole
// occurrence that fits into the period: daily counts only frequency-1
// tasks, a week holds 7/freq occurrences, a month 31/freq.
func ComputeLoadTotals(tasks []model.Task) LoadTotals {
	var totals LoadTotals
	for _, task := range tasks {
		freq := task.RepeatFreqDays
		if freq < 1 {
			continue
		}
		if freq == 1 {
			totals.DailyMins += task.DurationMins
		}
		totals.WeeklyMins += (7 / freq) * task.DurationMins
		totals.MonthlyMins += (31 / freq) * task.DurationMins
	}
	return totals
}

// HoursAndMins renders a minute total as "H hour(s) M min(s)", omitting
// a zero part. Zero total renders as "0 mins".
func HoursAndMins(totalMins int) string {
	hours := totalMins / 60
	mins := totalMins % 60
	var b strings.Builder
	if hours == 1 {
		b.WriteString("1 hour ")
	} else if hours > 1 {
		fmt.Fprintf(&b, "%d hours ", hours)
	}
	if mins == 1 {
		b.WriteString("1 min")
	} else if mins > 1 || hours == 0 {
		fmt.Fprintf(&b, "%d mins", mins)
	}
	return strings.TrimSpace(b.String())
}

// RoutineOverview is the repeating-task listing plus the projected
// workload totals derived from it.
type RoutineOverview struct {
	Tasks  []model.TaskWithLocation
	Totals LoadTotals
}

// RoutineService aggregates the recurring routine: which chores repeat,
// how often, and how much time they claim per day, week and month.
type RoutineService struct {
	tasks TaskStore
}

func NewRoutineService(tasks TaskStore) *RoutineService {
	return &RoutineService{tasks: tasks}
}

// Overview lists all repeating tasks, most frequent first, with the
// load totals over the same set.
func (s *RoutineService) Overview(ctx context.Context) (*RoutineOverview, error) {
	rows, err := s.tasks.ListRecurring(ctx)
	if err != nil {
		return nil, err
	}
	plain := make([]model.Task, len(rows))
	for i, row := range rows {
		plain[i] = row.Task
	}
	return &RoutineOverview{Tasks: rows, Totals: ComputeLoadTotals(plain)}, nil
}
