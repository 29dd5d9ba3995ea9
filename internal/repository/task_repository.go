package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"task-manager/internal/model"
)

// ErrAmbiguousID is returned when a short id matches more than one task.
var ErrAmbiguousID = errors.New("task id prefix is ambiguous")

// TaskFilter narrows List. Zero values mean "no restriction".
type TaskFilter struct {
	// From and To bound CreationDate as [From, To).
	From      time.Time
	To        time.Time
	Category  model.Category
	Search    string
	Completed *bool
}

// CategoryCount is one row of CountOpenByCategory.
type CategoryCount struct {
	Category model.Category
	Count    int64
}

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

func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// Delete removes a task; deleting an unknown id reports gorm.ErrRecordNotFound.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	res := r.db.WithContext(ctx).Where("id = ?", taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete task: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByPrefix resolves the short ids shown in chat listings.
func (r *TaskRepository) FindByPrefix(ctx context.Context, prefix string) (*model.Task, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("id LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Limit(2).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find task by prefix: %w", err)
	}
	switch len(tasks) {
	case 0:
		return nil, gorm.ErrRecordNotFound
	case 1:
		return &tasks[0], nil
	default:
		return nil, ErrAmbiguousID
	}
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if !filter.From.IsZero() {
		q = q.Where("creation_date >= ?", storedTime(filter.From))
	}
	if !filter.To.IsZero() {
		q = q.Where("creation_date < ?", storedTime(filter.To))
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("title LIKE ? ESCAPE '\\'", "%"+escapeLike(s)+"%")
	}
	if filter.Completed != nil {
		q = q.Where("is_complete = ?", *filter.Completed)
	}

	var tasks []model.Task
	if err := q.Order("creation_date ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	return r.List(ctx, TaskFilter{})
}

// ListDueMothers returns the series heads whose next occurrence and creation
// date fall before dayEnd.
func (r *TaskRepository) ListDueMothers(ctx context.Context, dayEnd time.Time) ([]model.Task, error) {
	var tasks []model.Task
	end := storedTime(dayEnd)
	err := r.db.WithContext(ctx).
		Where("repeat_option <> ? AND is_complete = ? AND is_recurring_instance = ?", model.RepeatNever, false, false).
		Where("next_occurrence_date < ? AND creation_date < ?", end, end).
		Order("creation_date ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list due recurring tasks: %w", err)
	}
	return tasks, nil
}

// ApplyRecurrence inserts spawned instances and updates advanced mothers in
// a single transaction. On error nothing is written.
func (r *TaskRepository) ApplyRecurrence(ctx context.Context, spawned, mothers []model.Task) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range spawned {
			task := spawned[i].Clone()
			if err := tx.Create(&task).Error; err != nil {
				return fmt.Errorf("insert instance of %q: %w", task.Title, err)
			}
		}
		for i := range mothers {
			task := mothers[i].Clone()
			if err := tx.Save(&task).Error; err != nil {
				return fmt.Errorf("advance task %s: %w", task.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply recurrence: %w", err)
	}
	return nil
}

func (r *TaskRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// CountCompleted counts completed tasks; a zero since counts all of them.
func (r *TaskRepository) CountCompleted(ctx context.Context, since time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).Where("is_complete = ?", true)
	if !since.IsZero() {
		q = q.Where("complete_date >= ?", storedTime(since))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count completed tasks: %w", err)
	}
	return n, nil
}

func (r *TaskRepository) CountOpenByCategory(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("category, COUNT(*) AS count").
		Where("is_complete = ?", false).
		Group("category").
		Order("category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count tasks by category: %w", err)
	}
	return rows, nil
}

// storedTime matches the normalisation applied by model.Task.BeforeSave.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
