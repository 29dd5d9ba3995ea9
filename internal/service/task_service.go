package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"task-manager/internal/model"
	"task-manager/internal/notify"
	"task-manager/internal/recurrence"
	"task-manager/internal/repository"
)

// ErrTitleRequired is returned when a task would be saved without a title.
var ErrTitleRequired = errors.New("title is required")

// TaskInput represents data required to create a task. Empty attribute
// strings select the defaults; a zero Date means now.
type TaskInput struct {
	Title       string
	Description string
	Date        time.Time
	Category    string
	Priority    string
	Repeat      string
	Tint        string
}

// TaskPatch carries the fields of an edit. Nil fields keep their current
// value.
type TaskPatch struct {
	Title       *string
	Description *string
	Date        *time.Time
	Category    *string
	Priority    *string
	Repeat      *string
	Tint        *string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
	notifier notify.Scheduler
	loc      *time.Location
	now      func() time.Time
}

func NewTaskService(taskRepo *repository.TaskRepository, notifier notify.Scheduler, loc *time.Location) *TaskService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{taskRepo: taskRepo, notifier: notifier, loc: loc, now: time.Now}
}

// SetClock replaces the time source used for defaults and completion dates.
func (s *TaskService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *TaskService) Location() *time.Location { return s.loc }

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	task := model.Task{
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		CreationDate: input.Date,
	}
	if task.CreationDate.IsZero() {
		task.CreationDate = s.now()
	}
	if err := applyAttributes(&task, &input.Category, &input.Priority, &input.Repeat, &input.Tint); err != nil {
		return nil, err
	}
	recurrence.Reschedule(&task, s.loc)

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	s.notifier.OnTaskScheduleChanged(task)
	return &task, nil
}

// UpdateTask applies an edit and recomputes the derived next occurrence.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Date != nil && !patch.Date.IsZero() {
		task.CreationDate = *patch.Date
	}
	if err := applyAttributes(task, patch.Category, patch.Priority, patch.Repeat, patch.Tint); err != nil {
		return nil, err
	}
	recurrence.Reschedule(task, s.loc)

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	s.reschedule(*task)
	return task, nil
}

// SetComplete marks a task as done or reopens it. Completing cancels the
// pending reminder, reopening schedules it again.
func (s *TaskService) SetComplete(ctx context.Context, taskID string, done bool) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsComplete == done {
		return task, nil
	}
	task.SetComplete(done, s.now())
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	s.reschedule(*task)
	return task, nil
}

// DeleteTask removes a task and its reminder. Instances of a deleted mother
// are kept; they are ordinary tasks once spawned.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}
	s.notifier.OnTaskRemoved(taskID)
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, taskID)
}

// Resolve accepts a full id or the short prefix shown in listings.
func (s *TaskService) Resolve(ctx context.Context, ref string) (*model.Task, error) {
	ref = strings.TrimSpace(ref)
	task, err := s.taskRepo.FindByID(ctx, ref)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.taskRepo.FindByPrefix(ctx, ref)
}

// ListDay returns the tasks whose date falls on day, narrowed by filter.
// The date bounds of filter are replaced.
func (s *TaskService) ListDay(ctx context.Context, day time.Time, filter repository.TaskFilter) ([]model.Task, error) {
	filter.From = recurrence.StartOfDay(day, s.loc)
	filter.To = filter.From.AddDate(0, 0, 1)
	return s.taskRepo.List(ctx, filter)
}

// ListOverdue returns open tasks dated before the start of day.
func (s *TaskService) ListOverdue(ctx context.Context, day time.Time) ([]model.Task, error) {
	open := false
	return s.taskRepo.List(ctx, repository.TaskFilter{
		To:        recurrence.StartOfDay(day, s.loc),
		Completed: &open,
	})
}

// Search looks tasks up by title across all days.
func (s *TaskService) Search(ctx context.Context, text string, category model.Category) ([]model.Task, error) {
	return s.taskRepo.List(ctx, repository.TaskFilter{Search: text, Category: category})
}

func (s *TaskService) ListAll(ctx context.Context) ([]model.Task, error) {
	return s.taskRepo.ListAll(ctx)
}

// RescheduleAll registers reminders for every open task. It is called once
// on startup since pending reminders live in memory.
func (s *TaskService) RescheduleAll(ctx context.Context) (int, error) {
	open := false
	tasks, err := s.taskRepo.List(ctx, repository.TaskFilter{Completed: &open})
	if err != nil {
		return 0, fmt.Errorf("reschedule reminders: %w", err)
	}
	for _, task := range tasks {
		s.notifier.OnTaskScheduleChanged(task)
	}
	return len(tasks), nil
}

func (s *TaskService) reschedule(task model.Task) {
	if task.IsComplete {
		s.notifier.OnTaskRemoved(task.ID)
		return
	}
	s.notifier.OnTaskScheduleChanged(task)
}

func applyAttributes(task *model.Task, category, priority, repeat, tint *string) error {
	if category != nil && (*category != "" || task.Category == "") {
		c, err := model.ParseCategory(*category)
		if err != nil {
			return err
		}
		task.Category = c
	}
	if priority != nil && (*priority != "" || task.Priority == "") {
		p, err := model.ParsePriority(*priority)
		if err != nil {
			return err
		}
		task.Priority = p
	}
	if repeat != nil && (*repeat != "" || task.Repeat == "") {
		r, err := model.ParseRepeat(*repeat)
		if err != nil {
			return err
		}
		task.Repeat = r
	}
	if tint != nil && (*tint != "" || task.Tint == "") {
		t, err := model.ParseTint(*tint)
		if err != nil {
			return err
		}
		task.Tint = t
	}
	return nil
}
