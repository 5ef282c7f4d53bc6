package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// LogRepository appends and queries audit log entries. Entries are
// never updated or deleted; history outlives the tasks it describes.
type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Append(ctx context.Context, logType model.LogType, at time.Time, taskID int64) error {
	entry := model.LogEntry{Type: logType, LoggedAt: at, TaskID: taskID}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// Recent returns the latest entries joined with their task and
// location. The inner join hides entries whose task has since been
// deleted; the rows themselves are retained.
func (r *LogRepository) Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	var rows []model.HistoryEntry
	err := r.db.WithContext(ctx).Model(&model.LogEntry{}).
		Select("log_entries.id AS log_id, log_entries.type, log_entries.logged_at, log_entries.task_id, " +
			"tasks.name AS task_name, tasks.repeat_freq_days, locations.name AS location_name").
		Joins("INNER JOIN tasks ON tasks.id = log_entries.task_id").
		Joins("INNER JOIN locations ON locations.id = tasks.location_id").
		Order("log_entries.logged_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return rows, nil
}
