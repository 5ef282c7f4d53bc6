package model

import (
	"time"

	"chore-planner/internal/timeutil"
)

// Level describes how thorough a cleaning task is.
type Level int

const (
	LevelLight    Level = 1 // once-over
	LevelStandard Level = 2
	LevelDeep     Level = 3
)

func (l Level) IsValid() bool {
	return l >= LevelLight && l <= LevelDeep
}

func (l Level) String() string {
	switch l {
	case LevelLight:
		return "Once-over"
	case LevelStandard:
		return "Standard"
	case LevelDeep:
		return "Deep clean"
	default:
		return "Unknown"
	}
}

// Task is a single cleaning task assigned to a location. A repeat
// frequency of zero means a one-time task; anything greater means the
// task re-arms itself to a new due date on completion.
type Task struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement"`
	Name               string    `gorm:"not null"`
	Level              Level     `gorm:"not null"`
	DurationMins       int       `gorm:"not null"`
	Completed          bool      `gorm:"not null;default:false"`
	CanBeDoneAdvance   bool      `gorm:"not null;default:false"`
	HasReminders       bool      `gorm:"not null;default:false"`
	SetAt              time.Time `gorm:"not null"`
	DueAt              time.Time `gorm:"not null;index"`
	RepeatFreqDays     int       `gorm:"not null;default:0"`
	Motivation         string
	PrevCompletedTimes int        `gorm:"not null;default:0"`
	PrevCompletedLast  *time.Time // nil = never completed
	LocationID         uint       `gorm:"index;not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Recurring reports whether the task re-arms itself on completion.
func (t Task) Recurring() bool {
	return t.RepeatFreqDays > 0
}

// NextDue computes the due date for a recurring task that is completed
// or rescheduled at "now": end of today plus the repeat frequency. The
// result is always strictly in the future and day-aligned.
func NextDue(now time.Time, freqDays int) time.Time {
	return timeutil.AddDays(timeutil.EndOfDay(now), freqDays)
}

// IsOverdue reports whether the task's due date has passed, at day
// granularity: due before the start of today.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueAt.Before(timeutil.StartOfDay(now))
}

// IsDueToday reports whether the task is due at some point today.
func (t Task) IsDueToday(now time.Time) bool {
	return !t.DueAt.Before(timeutil.StartOfDay(now)) && !t.DueAt.After(timeutil.EndOfDay(now))
}

// CompletionEligible reports whether the task may be marked complete
// right now. Tasks flagged as doable in advance are always eligible;
// otherwise the task must be due today or overdue.
func (t Task) CompletionEligible(now time.Time) bool {
	if t.CanBeDoneAdvance {
		return true
	}
	return !t.DueAt.After(timeutil.EndOfDay(now))
}

// RescheduleEligible reports whether the task can be pushed to its next
// cycle without completing it. Only overdue recurring tasks qualify.
func (t Task) RescheduleEligible(now time.Time) bool {
	return t.Recurring() && t.IsOverdue(now)
}

// TaskWithLocation is a task row joined with its location name, as
// returned by the due-window and routine queries.
type TaskWithLocation struct {
	Task         `gorm:"embedded"`
	LocationName string
}
