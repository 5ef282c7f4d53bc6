package model

import "time"

// LogType identifies the lifecycle event an audit entry records.
type LogType int

const (
	LogScheduled               LogType = 1
	LogCompletedAndRescheduled LogType = 2
	LogCompleted               LogType = 3
	LogUpdated                 LogType = 4
	LogRescheduled             LogType = 5
	// LogDeleted is reserved but never written: a deletion entry would
	// reference a task row that no longer exists.
	LogDeleted LogType = 6
)

func (t LogType) String() string {
	switch t {
	case LogScheduled:
		return "Scheduled"
	case LogCompletedAndRescheduled:
		return "Completed and rescheduled"
	case LogCompleted:
		return "Completed"
	case LogUpdated:
		return "Updated"
	case LogRescheduled:
		return "Rescheduled"
	case LogDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// LogEntry is an immutable audit record of a task lifecycle event.
// Entries are append-only and survive deletion of the task they
// reference. TaskID is -1 when the task's id could not be determined
// at write time.
type LogEntry struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	Type     LogType   `gorm:"not null"`
	LoggedAt time.Time `gorm:"not null;index"`
	TaskID   int64     `gorm:"not null"`
}

// HistoryEntry is a log entry joined with the task and location it
// refers to, for the history view.
type HistoryEntry struct {
	LogID          uint
	Type           LogType
	LoggedAt       time.Time
	TaskID         int64
	TaskName       string
	RepeatFreqDays int
	LocationName   string
}
