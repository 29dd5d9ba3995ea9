package recurrence

import (
	"time"

	"task-manager/internal/model"
)

// NextOccurrence returns the date of the occurrence following date. Steps are
// taken on the calendar of loc, so the wall clock survives DST changes and
// month ends are those of loc. Never and unknown cadences return date
// unchanged.
func NextOccurrence(date time.Time, repeat model.Repeat, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	switch repeat {
	case model.RepeatDaily:
		return date.In(loc).AddDate(0, 0, 1)
	case model.RepeatWeekly:
		return date.In(loc).AddDate(0, 0, 7)
	case model.RepeatMonthly:
		return addMonthClamped(date.In(loc))
	default:
		return date
	}
}

// Reschedule recomputes the derived NextOccurrenceDate after the cadence or
// the creation date of a task changed.
func Reschedule(task *model.Task, loc *time.Location) {
	task.NextOccurrenceDate = NextOccurrence(task.CreationDate, task.Repeat, loc)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(month time.Month, year int) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonthClamped moves date one calendar month forward, keeping the wall
// clock. Jan 31 becomes the last day of February instead of spilling into
// March the way time.AddDate normalises it.
func addMonthClamped(date time.Time) time.Time {
	year, month, day := date.Date()
	hour, minute, sec := date.Clock()

	targetYear, targetMonth := year, month+1
	if targetMonth > time.December {
		targetMonth = time.January
		targetYear++
	}
	if last := DaysInMonth(targetMonth, targetYear); day > last {
		day = last
	}
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, date.Nanosecond(), date.Location())
}
