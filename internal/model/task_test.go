package model

import (
	"testing"
	"time"

	"chore-planner/internal/timeutil"
)

var noon = time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)

func TestNextDue(t *testing.T) {
	got := NextDue(noon, 7)
	want := time.Date(2026, time.June, 17, 23, 59, 59, 999000000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextDue = %v, want %v", got, want)
	}
	if !got.After(noon) {
		t.Error("next due date must be strictly in the future")
	}
}

func TestNextDueDailyIsTomorrow(t *testing.T) {
	// Even a completion at 23:59 pushes a daily task to tomorrow, not
	// to a minute later.
	late := time.Date(2026, time.June, 10, 23, 59, 0, 0, time.UTC)
	got := NextDue(late, 1)
	if !timeutil.SameDay(got, time.Date(2026, time.June, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NextDue(1) = %v, want a time on June 11", got)
	}
}

func TestDueStates(t *testing.T) {
	tests := []struct {
		name     string
		due      time.Time
		overdue  bool
		dueToday bool
	}{
		{"yesterday end of day", time.Date(2026, time.June, 9, 23, 59, 59, 0, time.UTC), true, false},
		{"start of today", time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC), false, true},
		{"end of today", timeutil.EndOfDay(noon), false, true},
		{"tomorrow", time.Date(2026, time.June, 11, 0, 0, 0, 0, time.UTC), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{DueAt: tt.due}
			if got := task.IsOverdue(noon); got != tt.overdue {
				t.Errorf("IsOverdue = %v, want %v", got, tt.overdue)
			}
			if got := task.IsDueToday(noon); got != tt.dueToday {
				t.Errorf("IsDueToday = %v, want %v", got, tt.dueToday)
			}
			// A task is overdue, due today or upcoming, never two at once.
			if task.IsOverdue(noon) && task.IsDueToday(noon) {
				t.Error("overdue and due today are mutually exclusive")
			}
		})
	}
}

func TestCompletionEligible(t *testing.T) {
	tests := []struct {
		name    string
		due     time.Time
		advance bool
		want    bool
	}{
		{"overdue", time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC), false, true},
		{"due today", timeutil.EndOfDay(noon), false, true},
		{"due tomorrow", time.Date(2026, time.June, 11, 12, 0, 0, 0, time.UTC), false, false},
		{"due tomorrow but advance allowed", time.Date(2026, time.June, 11, 12, 0, 0, 0, time.UTC), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{DueAt: tt.due, CanBeDoneAdvance: tt.advance}
			if got := task.CompletionEligible(noon); got != tt.want {
				t.Errorf("CompletionEligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRescheduleEligible(t *testing.T) {
	overdue := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"overdue recurring", Task{DueAt: overdue, RepeatFreqDays: 7}, true},
		{"overdue one-time", Task{DueAt: overdue}, false},
		{"recurring due today", Task{DueAt: timeutil.EndOfDay(noon), RepeatFreqDays: 7}, false},
		{"recurring upcoming", Task{DueAt: noon.AddDate(0, 0, 3), RepeatFreqDays: 7}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.RescheduleEligible(noon); got != tt.want {
				t.Errorf("RescheduleEligible = %v, want %v", got, tt.want)
			}
		})
	}
}
