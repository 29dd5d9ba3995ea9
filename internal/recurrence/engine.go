// Package recurrence keeps recurring task series populated with the instances
// that are due, without generating the same occurrence twice.
//
// The engine is pure: it works on copies of the tasks it is given and returns
// what should be inserted and updated. Persisting the result atomically is
// the caller's job.
package recurrence

import (
	"time"

	"github.com/google/uuid"

	"task-manager/internal/model"
)

// Result holds the outcome of one pass.
type Result struct {
	// Spawned are new recurring instances to insert.
	Spawned []model.Task
	// Mothers are the advanced series heads to update in place.
	Mothers []model.Task
}

// Empty reports whether the pass changed nothing.
func (r Result) Empty() bool {
	return len(r.Spawned) == 0 && len(r.Mothers) == 0
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides the id source for spawned instances.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// Engine compares dates at day granularity in its location.
type Engine struct {
	loc   *time.Location
	newID func() string
}

// NewEngine returns an engine working in loc, time.Local when nil.
func NewEngine(loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{loc: loc, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the zone days and calendar steps are computed in.
func (e *Engine) Location() *time.Location { return e.loc }

// Due reports whether task is a mother whose next occurrence has arrived.
func (e *Engine) Due(task model.Task, today time.Time) bool {
	today = StartOfDay(today, e.loc)
	return task.Repeat.Recurring() &&
		!task.IsComplete &&
		!task.IsRecurringInstance &&
		!e.day(task.NextOccurrenceDate).After(today) &&
		!e.day(task.CreationDate).After(today)
}

// AdvanceOverdue spawns one instance for every due mother and moves the
// mother past today. Occurrences missed while nothing ran are skipped: a
// mother that is several periods behind yields a single instance, dated at
// its overdue next occurrence, and is then fast-forwarded. tasks is not
// modified.
func (e *Engine) AdvanceOverdue(tasks []model.Task, today time.Time) Result {
	today = StartOfDay(today, e.loc)

	var res Result
	for _, task := range tasks {
		if !e.Due(task, today) {
			continue
		}
		mother := task.Clone()
		res.Spawned = append(res.Spawned, e.spawn(mother))

		e.advance(&mother)
		for !e.day(mother.NextOccurrenceDate).After(today) {
			prev := mother.NextOccurrenceDate
			e.advance(&mother)
			if !mother.NextOccurrenceDate.After(prev) {
				break
			}
		}
		res.Mothers = append(res.Mothers, mother)
	}
	return res
}

func (e *Engine) spawn(mother model.Task) model.Task {
	root := mother.RootID()
	instance := model.Task{
		ID:                  e.newID(),
		Title:               mother.Title,
		Description:         mother.Description,
		CreationDate:        mother.NextOccurrenceDate,
		Tint:                mother.Tint,
		Category:            mother.Category,
		Priority:            mother.Priority,
		Repeat:              mother.Repeat,
		ParentTaskID:        &root,
		IsRecurringInstance: true,
	}
	Reschedule(&instance, e.loc)
	return instance
}

func (e *Engine) advance(mother *model.Task) {
	mother.CreationDate = NextOccurrence(mother.CreationDate, mother.Repeat, e.loc)
	Reschedule(mother, e.loc)
	mother.SetComplete(false, time.Time{})
}

func (e *Engine) day(t time.Time) time.Time {
	return StartOfDay(t, e.loc)
}
