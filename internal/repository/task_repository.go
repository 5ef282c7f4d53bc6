package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// ErrIndeterminateID is returned when the next autoincrement value for
// the task table cannot be resolved, e.g. before the first insert.
var ErrIndeterminateID = errors.New("repository: next task id indeterminate")

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update replaces the full task row.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UpdateCompletion patches only the completed flag.
func (r *TaskRepository) UpdateCompletion(ctx context.Context, taskID uint, completed bool) error {
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).
		Update("completed", completed).Error; err != nil {
		return fmt.Errorf("update task completion: %w", err)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Task{}, taskID).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// NextID predicts the id the next inserted task will receive by reading
// the SQLite autoincrement counter. Inherently racy against concurrent
// inserts, which do not exist in this single-user app.
func (r *TaskRepository) NextID(ctx context.Context) (uint, error) {
	var seq int64
	err := r.db.WithContext(ctx).
		Raw("SELECT seq FROM sqlite_sequence WHERE name = ?", "tasks").
		Scan(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("select task autoincrement: %w", err)
	}
	if seq <= 0 {
		return 0, ErrIndeterminateID
	}
	return uint(seq) + 1, nil
}

// ListDueBetween returns uncompleted tasks due inside the window, with
// their locations, ordered by due date.
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.TaskWithLocation, error) {
	var rows []model.TaskWithLocation
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("tasks.*, locations.name AS location_name").
		Joins("INNER JOIN locations ON locations.id = tasks.location_id").
		Where("tasks.completed = ? AND tasks.due_at >= ? AND tasks.due_at <= ?", false, from, to).
		Order("tasks.due_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	return rows, nil
}

// ListRecurring returns every repeating task with its location, most
// frequent first.
func (r *TaskRepository) ListRecurring(ctx context.Context) ([]model.TaskWithLocation, error) {
	var rows []model.TaskWithLocation
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("tasks.*, locations.name AS location_name").
		Joins("INNER JOIN locations ON locations.id = tasks.location_id").
		Where("tasks.repeat_freq_days > 0").
		Order("tasks.repeat_freq_days ASC, tasks.name DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list recurring tasks: %w", err)
	}
	return rows, nil
}

// ListReminderEnabled returns uncompleted tasks that have reminders
// switched on, for re-arming after a restart.
func (r *TaskRepository) ListReminderEnabled(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("has_reminders = ? AND completed = ?", true, false).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list reminder tasks: %w", err)
	}
	return tasks, nil
}
