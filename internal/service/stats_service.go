package service

import (
	"context"
	"time"

	"task-manager/internal/recurrence"
	"task-manager/internal/repository"
)

// Stats is the completion summary shown by /stats.
type Stats struct {
	Total          int64
	TotalCompleted int64
	// CompletionRate is a percentage; zero when there are no tasks.
	CompletionRate float64
	CompletedWeek  int64
	CompletedMonth int64
}

// StatsService computes completion statistics.
type StatsService struct {
	taskRepo *repository.TaskRepository
	loc      *time.Location
}

func NewStatsService(taskRepo *repository.TaskRepository, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{taskRepo: taskRepo, loc: loc}
}

func (s *StatsService) Compute(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	var err error

	if st.Total, err = s.taskRepo.Count(ctx); err != nil {
		return Stats{}, err
	}
	if st.TotalCompleted, err = s.taskRepo.CountCompleted(ctx, time.Time{}); err != nil {
		return Stats{}, err
	}
	if st.CompletedWeek, err = s.taskRepo.CountCompleted(ctx, StartOfWeek(now, s.loc)); err != nil {
		return Stats{}, err
	}
	if st.CompletedMonth, err = s.taskRepo.CountCompleted(ctx, StartOfMonth(now, s.loc)); err != nil {
		return Stats{}, err
	}
	if st.Total > 0 {
		st.CompletionRate = float64(st.TotalCompleted) / float64(st.Total) * 100
	}
	return st, nil
}

// StartOfWeek returns midnight of the Monday on or before t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := recurrence.StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	day := recurrence.StartOfDay(t, loc)
	return day.AddDate(0, 0, 1-day.Day())
}
