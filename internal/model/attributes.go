package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Priority is descriptive only; nothing is ordered or scheduled by it.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) Icon() string {
	switch p {
	case PriorityLow:
		return "🟢"
	case PriorityHigh:
		return "🔴"
	default:
		return "🟡"
	}
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return PriorityMedium, nil
	}
	if !p.Valid() {
		return PriorityMedium, fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}

func (p *Priority) Scan(value any) error {
	raw, _ := scanText(value)
	parsed := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !parsed.Valid() {
		parsed = PriorityMedium
	}
	*p = parsed
	return nil
}

func (p Priority) Value() (driver.Value, error) {
	if !p.Valid() {
		return string(PriorityMedium), nil
	}
	return string(p), nil
}

// Tint is the colour a task is drawn with.
type Tint string

const (
	TintBlue   Tint = "blue"
	TintGreen  Tint = "green"
	TintRed    Tint = "red"
	TintYellow Tint = "yellow"
	TintPurple Tint = "purple"
	TintOrange Tint = "orange"
)

var Tints = []Tint{TintBlue, TintGreen, TintRed, TintYellow, TintPurple, TintOrange}

func (t Tint) Valid() bool {
	for _, known := range Tints {
		if t == known {
			return true
		}
	}
	return false
}

func ParseTint(raw string) (Tint, error) {
	t := Tint(strings.ToLower(strings.TrimSpace(raw)))
	if t == "" {
		return TintBlue, nil
	}
	if !t.Valid() {
		return TintBlue, fmt.Errorf("unknown tint %q", raw)
	}
	return t, nil
}

func (t *Tint) Scan(value any) error {
	raw, _ := scanText(value)
	parsed := Tint(strings.ToLower(strings.TrimSpace(raw)))
	if !parsed.Valid() {
		parsed = TintBlue
	}
	*t = parsed
	return nil
}

func (t Tint) Value() (driver.Value, error) {
	if !t.Valid() {
		return string(TintBlue), nil
	}
	return string(t), nil
}
