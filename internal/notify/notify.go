// Package notify schedules task reminders.
//
// The task lifecycle talks to it only through Scheduler, whose two hooks are
// fire-and-forget: they never block the caller and never report errors.
// Center is the in-process implementation; it keeps the pending reminders in
// memory and hands due ones to a Sender.
package notify

import (
	"context"
	"time"

	"task-manager/internal/model"
)

// Scheduler receives task lifecycle events that affect reminders.
type Scheduler interface {
	// OnTaskScheduleChanged schedules or reschedules the reminder keyed by task.ID.
	OnTaskScheduleChanged(task model.Task)
	// OnTaskRemoved cancels any pending reminder for taskID.
	OnTaskRemoved(taskID string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) OnTaskScheduleChanged(model.Task) {}
func (Nop) OnTaskRemoved(string)             {}

// Reminder is one pending notification.
type Reminder struct {
	TaskID string
	Title  string
	Body   string
	FireAt time.Time
	// Repeat is never for one-shot reminders.
	Repeat model.Repeat
	// anchor is the date whose clock, weekday or day-of-month repeating
	// reminders match.
	anchor time.Time
}

// Sender delivers a reminder to the user.
type Sender interface {
	SendReminder(ctx context.Context, r Reminder) error
}

const noDescription = "No description available."

// NextFire returns the first instant at or after now at which a reminder
// anchored at schedule should fire. One-shot reminders fire at schedule and
// report false once it has passed. Repeating reminders match the clock
// (daily), weekday and clock (weekly) or day-of-month and clock (monthly);
// months without that day are skipped.
func NextFire(schedule time.Time, repeat model.Repeat, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	s := schedule.In(loc)
	n := now.In(loc)
	hour, minute, sec := s.Clock()
	year, month, day := n.Date()

	switch repeat {
	case model.RepeatDaily:
		c := time.Date(year, month, day, hour, minute, sec, 0, loc)
		if c.Before(n) {
			c = time.Date(year, month, day+1, hour, minute, sec, 0, loc)
		}
		return c, true
	case model.RepeatWeekly:
		diff := (int(s.Weekday()) - int(n.Weekday()) + 7) % 7
		c := time.Date(year, month, day+diff, hour, minute, sec, 0, loc)
		if c.Before(n) {
			c = time.Date(year, month, day+diff+7, hour, minute, sec, 0, loc)
		}
		return c, true
	case model.RepeatMonthly:
		want := s.Day()
		for i := 0; i < 24; i++ {
			first := time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, loc)
			if want > daysIn(first) {
				continue
			}
			c := time.Date(first.Year(), first.Month(), want, hour, minute, sec, 0, loc)
			if !c.Before(n) {
				return c, true
			}
		}
		return time.Time{}, false
	default:
		if s.Before(n) {
			return time.Time{}, false
		}
		return s, true
	}
}

func daysIn(first time.Time) int {
	return first.AddDate(0, 1, -1).Day()
}

// reminderFor builds the reminder for task, or reports false when nothing
// should be pending for it.
func reminderFor(task model.Task, now time.Time, loc *time.Location) (Reminder, bool) {
	if task.IsComplete {
		return Reminder{}, false
	}
	repeat := model.RepeatNever
	anchor := task.CreationDate
	// Instances are leaves of a series; only the mother repeats.
	if task.Repeat.Recurring() && !task.IsRecurringInstance {
		repeat = task.Repeat
		anchor = task.NextOccurrenceDate
	}
	fireAt, ok := NextFire(anchor, repeat, now, loc)
	if !ok {
		return Reminder{}, false
	}
	body := task.Description
	if body == "" {
		body = noDescription
	}
	return Reminder{
		TaskID: task.ID,
		Title:  task.Title,
		Body:   body,
		FireAt: fireAt,
		Repeat: repeat,
		anchor: anchor,
	}, true
}
