package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"chore-planner/internal/model"
	"chore-planner/internal/prefs"
)

const (
	// Default reminder time when the user never picked one: noon.
	DefaultReminderHour   = 12
	DefaultReminderMinute = 0

	reminderKeyPrefix = "ChoreTaskID"
	reminderTitle     = "ChorePlanner"
)

// Dispatcher is the external notification collaborator. Scheduling and
// cancellation are fire-and-forget requests; delivery is not awaited.
type Dispatcher interface {
	Schedule(key string, fireIn time.Duration, title, body string) error
	Cancel(key string)
}

// PrefsReader supplies the stored user preferences, or nil if none.
type PrefsReader interface {
	Get() (*prefs.User, error)
}

// ReminderKey derives the stable notification identity for a task.
// One key per task id means at most one active reminder per task.
func ReminderKey(taskID uint) string {
	return fmt.Sprintf("%s%d", reminderKeyPrefix, taskID)
}

// SecondsUntil returns the whole seconds from now until at; negative
// when at is in the past.
func SecondsUntil(at, now time.Time) int64 {
	return int64(at.Sub(now) / time.Second)
}

// ReminderService decides when a task's reminder should fire and keeps
// the dispatcher in sync with due-date changes.
type ReminderService struct {
	dispatcher Dispatcher
	prefs      PrefsReader
	log        *zap.Logger
}

func NewReminderService(dispatcher Dispatcher, prefs PrefsReader, log *zap.Logger) *ReminderService {
	return &ReminderService{dispatcher: dispatcher, prefs: prefs, log: log}
}

// ReminderAt places the reminder on the task's due day at the user's
// preferred time, or at noon when no preference is set. Seconds and
// subseconds are always zeroed.
func (s *ReminderService) ReminderAt(due time.Time) time.Time {
	hour, minute := DefaultReminderHour, DefaultReminderMinute
	if user, err := s.prefs.Get(); err == nil && user != nil && user.HasReminderTime() {
		hour, minute = user.ReminderHour, user.ReminderMinute
	}
	y, m, d := due.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, due.Location())
}

// ScheduleOrSkip arms a reminder for the task, or does nothing when the
// task has reminders off or the reminder instant has already passed.
// A reminder for today at a time already gone is normal, not an error.
func (s *ReminderService) ScheduleOrSkip(task model.Task, now time.Time) {
	if !task.HasReminders {
		return
	}
	at := s.ReminderAt(task.DueAt)
	secs := SecondsUntil(at, now)
	if secs <= 0 {
		s.log.Debug("reminder instant already passed, not scheduling",
			zap.Uint("task_id", task.ID), zap.Int64("seconds", secs))
		return
	}
	body := fmt.Sprintf("Hey %s, %q is due today.", s.userName(), task.Name)
	key := ReminderKey(task.ID)
	if err := s.dispatcher.Schedule(key, time.Duration(secs)*time.Second, reminderTitle, body); err != nil {
		// Best-effort: the task mutation already happened.
		s.log.Warn("schedule reminder failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.log.Debug("reminder scheduled", zap.String("key", key), zap.Int64("fire_in_seconds", secs))
}

// Rearm cancels any pending reminder for the task and conditionally
// schedules a fresh one. Safe to call repeatedly; it must run whenever
// the due date or reminder enablement changes.
func (s *ReminderService) Rearm(task model.Task, now time.Time) {
	s.dispatcher.Cancel(ReminderKey(task.ID))
	s.ScheduleOrSkip(task, now)
}

// Cancel drops the pending reminder for a task id, if any.
func (s *ReminderService) Cancel(taskID uint) {
	s.dispatcher.Cancel(ReminderKey(taskID))
}

func (s *ReminderService) userName() string {
	if user, err := s.prefs.Get(); err == nil && user != nil && user.Name != "" {
		return user.Name
	}
	return "there"
}
