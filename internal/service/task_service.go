package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chore-planner/internal/model"
	"chore-planner/internal/timeutil"
)

// ErrValidation marks user-correctable input problems. The operation is
// aborted with state unchanged.
var ErrValidation = errors.New("service: invalid task")

// DueWindowDays bounds the todo listing: uncompleted tasks due within
// this many days either side of now.
const DueWindowDays = 7

// TaskStore is the relational persistence collaborator for tasks.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, task *model.Task) error
	UpdateCompletion(ctx context.Context, taskID uint, completed bool) error
	Delete(ctx context.Context, taskID uint) error
	FindByID(ctx context.Context, taskID uint) (*model.Task, error)
	NextID(ctx context.Context) (uint, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]model.TaskWithLocation, error)
	ListRecurring(ctx context.Context) ([]model.TaskWithLocation, error)
	ListReminderEnabled(ctx context.Context) ([]model.Task, error)
}

// LogStore appends to and reads the audit log.
type LogStore interface {
	Append(ctx context.Context, logType model.LogType, at time.Time, taskID int64) error
	Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}

// TaskDraft carries validated user input into create and update. It is
// an immutable value threaded through validation, date computation and
// persistence; nothing is shared between those steps.
type TaskDraft struct {
	Name             string      `validate:"required"`
	Level            model.Level `validate:"required,min=1,max=3"`
	DurationMins     int         `validate:"min=0"`
	CanBeDoneAdvance bool
	HasReminders     bool
	// DueAt is the explicit due date for one-time tasks; ignored for
	// repeating tasks, whose first due date derives from the frequency
	// and readiness percentage.
	DueAt          time.Time
	RepeatFreqDays int `validate:"min=0"`
	// ReadinessPercent is the "how recently was this done" slider:
	// 100 means freshly done (full cycle until first due), 0 means due
	// now.
	ReadinessPercent int `validate:"min=0,max=100"`
	Motivation       string
	LocationID       uint `validate:"required"`
}

// TaskService coordinates the task lifecycle: every operation
// validates, persists the task state, appends an audit log entry and
// updates notification state as one unit of work. Reminder and audit
// failures are surfaced but never roll back a completed persistence
// write.
type TaskService struct {
	tasks     TaskStore
	logs      LogStore
	reminders *ReminderService
	validate  *validator.Validate
	log       *zap.Logger
}

func NewTaskService(tasks TaskStore, logs LogStore, reminders *ReminderService, log *zap.Logger) *TaskService {
	return &TaskService{
		tasks:     tasks,
		logs:      logs,
		reminders: reminders,
		validate:  validator.New(),
		log:       log,
	}
}

// Create validates the draft, computes the first due date, persists the
// task, records a Scheduled log entry and arms a reminder if requested.
func (s *TaskService) Create(ctx context.Context, draft TaskDraft, now time.Time) (*model.Task, error) {
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	task := model.Task{
		Name:             strings.TrimSpace(draft.Name),
		Level:            draft.Level,
		DurationMins:     draft.DurationMins,
		Completed:        false,
		CanBeDoneAdvance: draft.CanBeDoneAdvance,
		HasReminders:     draft.HasReminders,
		SetAt:            now,
		RepeatFreqDays:   draft.RepeatFreqDays,
		Motivation:       draft.Motivation,
		LocationID:       draft.LocationID,
	}
	if draft.RepeatFreqDays > 0 {
		task.DueAt = timeutil.AddDays(now, firstDueDays(draft.RepeatFreqDays, draft.ReadinessPercent))
	} else {
		task.DueAt = draft.DueAt
	}

	if err := checkDueNotBeforeSet(task.DueAt, now); err != nil {
		return nil, err
	}

	// The prospective id is read before the insert so a reminder can be
	// armed in the same unit of work even if the driver does not report
	// the assigned id back.
	predicted, idErr := s.tasks.NextID(ctx)

	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, err
	}

	logTaskID := int64(task.ID)
	if task.ID == 0 {
		if idErr == nil {
			logTaskID = int64(predicted)
		} else {
			logTaskID = -1
		}
	}
	s.appendLog(ctx, model.LogScheduled, now, logTaskID)

	if task.HasReminders {
		switch {
		case task.ID != 0:
			s.reminders.ScheduleOrSkip(task, now)
		case idErr == nil:
			armed := task
			armed.ID = predicted
			s.reminders.ScheduleOrSkip(armed, now)
		default:
			// Non-fatal: the task exists, only the reminder is skipped.
			s.log.Warn("prospective task id unknown, reminder not scheduled", zap.Error(idErr))
		}
	}

	s.log.Info("task created",
		zap.Uint("task_id", task.ID),
		zap.Int("repeat_freq_days", task.RepeatFreqDays))
	return &task, nil
}

// Update edits an existing task. The original set date and completion
// history are preserved; the due date is recomputed only when the
// recurrence changed. The reminder is rearmed unconditionally since the
// due date or enablement may have changed.
func (s *TaskService) Update(ctx context.Context, taskID uint, draft TaskDraft, now time.Time) (*model.Task, error) {
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	existing, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = strings.TrimSpace(draft.Name)
	updated.Level = draft.Level
	updated.DurationMins = draft.DurationMins
	updated.CanBeDoneAdvance = draft.CanBeDoneAdvance
	updated.HasReminders = draft.HasReminders
	updated.Motivation = draft.Motivation
	updated.LocationID = draft.LocationID

	dueChanged := false
	if draft.RepeatFreqDays > 0 {
		if existing.RepeatFreqDays != draft.RepeatFreqDays {
			updated.DueAt = timeutil.AddDays(now, firstDueDays(draft.RepeatFreqDays, draft.ReadinessPercent))
			dueChanged = true
		}
		updated.RepeatFreqDays = draft.RepeatFreqDays
	} else {
		updated.RepeatFreqDays = 0
		if !existing.DueAt.Equal(draft.DueAt) {
			updated.DueAt = draft.DueAt
			dueChanged = true
		}
	}
	if dueChanged {
		if err := checkDueNotBeforeSet(updated.DueAt, now); err != nil {
			return nil, err
		}
	}

	if err := s.tasks.Update(ctx, &updated); err != nil {
		return nil, err
	}
	s.appendLog(ctx, model.LogUpdated, now, int64(updated.ID))
	s.reminders.Rearm(updated, now)

	s.log.Info("task updated", zap.Uint("task_id", updated.ID), zap.Bool("due_changed", dueChanged))
	return &updated, nil
}

// Complete marks a task done. One-time tasks terminate; repeating tasks
// iterate to their next cycle: completion resets, the due date advances
// a full frequency from end of today, and the completion history grows.
func (s *TaskService) Complete(ctx context.Context, taskID uint, now time.Time) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.CompletionEligible(now) {
		return nil, fmt.Errorf("%w: %q is not due yet and cannot be done in advance", ErrValidation, task.Name)
	}

	if task.Recurring() {
		task.Completed = false
		task.DueAt = model.NextDue(now, task.RepeatFreqDays)
		task.PrevCompletedTimes++
		completedAt := now
		task.PrevCompletedLast = &completedAt

		if err := s.tasks.Update(ctx, task); err != nil {
			return nil, err
		}
		s.appendLog(ctx, model.LogCompletedAndRescheduled, now, int64(task.ID))
		s.reminders.Rearm(*task, now)

		s.log.Info("recurring task iterated",
			zap.Uint("task_id", task.ID),
			zap.Time("next_due", task.DueAt))
		return task, nil
	}

	if err := s.tasks.UpdateCompletion(ctx, task.ID, true); err != nil {
		return nil, err
	}
	task.Completed = true
	s.appendLog(ctx, model.LogCompleted, now, int64(task.ID))
	// Finished for good: no future due date, no reminder.
	s.reminders.Cancel(task.ID)

	s.log.Info("one-time task completed", zap.Uint("task_id", task.ID))
	return task, nil
}

// Reschedule pushes an overdue repeating task to its next cycle without
// recording a completion. Completion history is untouched.
func (s *TaskService) Reschedule(ctx context.Context, taskID uint, now time.Time) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.RescheduleEligible(now) {
		return nil, fmt.Errorf("%w: only overdue repeating tasks can be rescheduled", ErrValidation)
	}

	task.DueAt = model.NextDue(now, task.RepeatFreqDays)
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	s.appendLog(ctx, model.LogRescheduled, now, int64(task.ID))
	s.reminders.Rearm(*task, now)

	s.log.Info("task rescheduled", zap.Uint("task_id", task.ID), zap.Time("next_due", task.DueAt))
	return task, nil
}

// Delete removes the task and cancels its reminder. Log history for the
// task is retained, which is also why no Deleted entry is written: it
// would reference a row that no longer exists.
func (s *TaskService) Delete(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return nil, err
	}
	s.reminders.Cancel(taskID)

	s.log.Info("task deleted", zap.Uint("task_id", taskID))
	return task, nil
}

// Get returns a single task.
func (s *TaskService) Get(ctx context.Context, taskID uint) (*model.Task, error) {
	return s.tasks.FindByID(ctx, taskID)
}

// DueSoon lists uncompleted tasks due within the todo window around
// now, with their locations, soonest first.
func (s *TaskService) DueSoon(ctx context.Context, now time.Time) ([]model.TaskWithLocation, error) {
	from := timeutil.AddDays(now, -DueWindowDays)
	to := timeutil.AddDays(now, DueWindowDays)
	return s.tasks.ListDueBetween(ctx, from, to)
}

// SyncReminders rearms reminders for every reminder-enabled uncompleted
// task. In-process timers do not survive restarts, so this runs at
// startup and on a periodic sweep; rearming is idempotent.
func (s *TaskService) SyncReminders(ctx context.Context, now time.Time) error {
	tasks, err := s.tasks.ListReminderEnabled(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		s.reminders.Rearm(task, now)
	}
	s.log.Debug("reminders synced", zap.Int("count", len(tasks)))
	return nil
}

func (s *TaskService) validateDraft(draft TaskDraft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return fmt.Errorf("%w: task name is required", ErrValidation)
	}
	if err := s.validate.Struct(draft); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// checkDueNotBeforeSet rejects a due date earlier than the set date;
// same-day is allowed.
func checkDueNotBeforeSet(due, now time.Time) error {
	if due.After(now) || timeutil.SameDay(due, now) {
		return nil
	}
	return fmt.Errorf("%w: task cannot be due before it is set", ErrValidation)
}

// firstDueDays pre-advances the first due date of a new repeating task
// in proportion to how recently it was last done: ceil(freq * pct/100)
// days, zero when the task is due right now.
func firstDueDays(freqDays, readinessPercent int) int {
	if readinessPercent <= 0 {
		return 0
	}
	return int(math.Ceil(float64(freqDays) * float64(readinessPercent) / 100))
}

func (s *TaskService) appendLog(ctx context.Context, logType model.LogType, at time.Time, taskID int64) {
	if err := s.logs.Append(ctx, logType, at, taskID); err != nil {
		// The task mutation already happened; surface, do not undo.
		s.log.Error("audit log write failed",
			zap.Int("log_type", int(logType)), zap.Int64("task_id", taskID), zap.Error(err))
	}
}
