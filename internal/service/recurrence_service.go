package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/notify"
	"task-manager/internal/recurrence"
)

// RecurrenceStore is the part of the task store the recurrence pass needs.
type RecurrenceStore interface {
	ListDueMothers(ctx context.Context, dayEnd time.Time) ([]model.Task, error)
	ApplyRecurrence(ctx context.Context, spawned, mothers []model.Task) error
}

// PassReport summarises one recurrence pass.
type PassReport struct {
	Spawned  int
	Advanced int
}

// RecurrenceService materialises overdue occurrences of recurring tasks.
type RecurrenceService struct {
	store    RecurrenceStore
	engine   *recurrence.Engine
	notifier notify.Scheduler
	log      zerolog.Logger

	// mu keeps two triggers from running a pass at the same time.
	mu sync.Mutex
}

func NewRecurrenceService(store RecurrenceStore, engine *recurrence.Engine, notifier notify.Scheduler, log zerolog.Logger) *RecurrenceService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &RecurrenceService{
		store:    store,
		engine:   engine,
		notifier: notifier,
		log:      log.With().Str("component", "recurrence").Logger(),
	}
}

// Run performs one pass for the day containing now. A read or commit failure
// leaves the store untouched and returns the error; reminders are only
// rescheduled after the batch is committed.
func (s *RecurrenceService) Run(ctx context.Context, now time.Time) (PassReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := recurrence.StartOfDay(now, s.engine.Location())
	dayEnd := today.AddDate(0, 0, 1)

	candidates, err := s.store.ListDueMothers(ctx, dayEnd)
	if err != nil {
		return PassReport{}, fmt.Errorf("load recurring tasks: %w", err)
	}

	result := s.engine.AdvanceOverdue(candidates, today)
	if result.Empty() {
		s.log.Debug().Time("today", today).Msg("no recurring tasks due")
		return PassReport{}, nil
	}

	if err := s.store.ApplyRecurrence(ctx, result.Spawned, result.Mothers); err != nil {
		return PassReport{}, fmt.Errorf("commit recurrence pass: %w", err)
	}

	for _, task := range result.Spawned {
		s.notifier.OnTaskScheduleChanged(task)
	}
	for _, task := range result.Mothers {
		s.notifier.OnTaskScheduleChanged(task)
	}

	report := PassReport{Spawned: len(result.Spawned), Advanced: len(result.Mothers)}
	s.log.Info().
		Time("today", today).
		Int("spawned", report.Spawned).
		Int("advanced", report.Advanced).
		Msg("recurrence pass committed")
	return report, nil
}
