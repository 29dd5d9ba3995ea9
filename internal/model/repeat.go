package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Repeat is the cadence of a recurring task.
type Repeat string

const (
	RepeatNever   Repeat = "never"
	RepeatDaily   Repeat = "daily"
	RepeatWeekly  Repeat = "weekly"
	RepeatMonthly Repeat = "monthly"
)

// RepeatOptions lists every cadence in display order.
var RepeatOptions = []Repeat{RepeatNever, RepeatDaily, RepeatWeekly, RepeatMonthly}

func (r Repeat) Valid() bool {
	switch r {
	case RepeatNever, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}

// Recurring reports whether the cadence produces further occurrences.
func (r Repeat) Recurring() bool {
	return r.Valid() && r != RepeatNever
}

func (r Repeat) Icon() string {
	switch r {
	case RepeatDaily:
		return "📅"
	case RepeatWeekly:
		return "🗓️"
	case RepeatMonthly:
		return "📆"
	default:
		return ""
	}
}

// ParseRepeat accepts the canonical names plus a few short aliases.
func ParseRepeat(raw string) (Repeat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "never", "none", "no":
		return RepeatNever, nil
	case "daily", "day", "d":
		return RepeatDaily, nil
	case "weekly", "week", "w":
		return RepeatWeekly, nil
	case "monthly", "month", "m":
		return RepeatMonthly, nil
	}
	return RepeatNever, fmt.Errorf("unknown repeat option %q", raw)
}

// Scan loads a stored cadence. Unknown values fall back to never so that a
// corrupted row can never start generating instances.
func (r *Repeat) Scan(value any) error {
	raw, ok := scanText(value)
	if !ok {
		*r = RepeatNever
		return nil
	}
	parsed := Repeat(strings.ToLower(strings.TrimSpace(raw)))
	if !parsed.Valid() {
		parsed = RepeatNever
	}
	*r = parsed
	return nil
}

func (r Repeat) Value() (driver.Value, error) {
	if !r.Valid() {
		return string(RepeatNever), nil
	}
	return string(r), nil
}

func scanText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
