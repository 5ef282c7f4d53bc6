package service

import (
	"context"

	"go.uber.org/zap"
)

// SettingsService performs the destructive reset of all planner data.
// User preferences live outside the database and survive a reset.
type SettingsService struct {
	tasks      TaskStore
	reminders  *ReminderService
	resetStore func(context.Context) error
	log        *zap.Logger
}

func NewSettingsService(tasks TaskStore, reminders *ReminderService, resetStore func(context.Context) error, log *zap.Logger) *SettingsService {
	return &SettingsService{tasks: tasks, reminders: reminders, resetStore: resetStore, log: log}
}

// ResetAll cancels every pending reminder and wipes tasks, rooms and
// history back to an empty database.
func (s *SettingsService) ResetAll(ctx context.Context) error {
	tasks, err := s.tasks.ListReminderEnabled(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		s.reminders.Cancel(task.ID)
	}
	if err := s.resetStore(ctx); err != nil {
		return err
	}
	s.log.Info("planner data reset", zap.Int("reminders_cancelled", len(tasks)))
	return nil
}
