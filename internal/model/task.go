package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const shortIDLen = 8

// Task represents a single item in the planner.
//
// A task with a cadence other than never is the mother of a series: the
// recurrence pass materialises instances from it and moves it forward in
// time. Instances point back at the root of the series via ParentTaskID.
type Task struct {
	ID                  string     `gorm:"primaryKey;type:text" yaml:"id"`
	Title               string     `gorm:"not null" yaml:"title"`
	Description         string     `yaml:"description,omitempty"`
	CreationDate        time.Time  `gorm:"index" yaml:"creation_date"`
	IsComplete          bool       `gorm:"index;default:false" yaml:"is_complete"`
	CompleteDate        *time.Time `yaml:"complete_date,omitempty"`
	Tint                Tint       `gorm:"type:text" yaml:"tint"`
	Category            Category   `gorm:"type:text;index" yaml:"category"`
	Priority            Priority   `gorm:"type:text" yaml:"priority"`
	Repeat              Repeat     `gorm:"column:repeat_option;type:text;index" yaml:"repeat"`
	NextOccurrenceDate  time.Time  `gorm:"index" yaml:"next_occurrence_date"`
	ParentTaskID        *string    `gorm:"index" yaml:"parent_task_id,omitempty"`
	IsRecurringInstance bool       `gorm:"index;default:false" yaml:"is_recurring_instance"`
	CreatedAt           time.Time  `yaml:"-"`
	UpdatedAt           time.Time  `yaml:"-"`
}

// BeforeCreate assigns an id to tasks that do not carry one yet.
func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave stores dates in UTC at second precision so that range
// predicates compare the stored text consistently.
func (t *Task) BeforeSave(_ *gorm.DB) error {
	t.CreationDate = normalizeTime(t.CreationDate)
	t.NextOccurrenceDate = normalizeTime(t.NextOccurrenceDate)
	if t.CompleteDate != nil {
		at := normalizeTime(*t.CompleteDate)
		t.CompleteDate = &at
	}
	return nil
}

// SetComplete toggles completion. CompleteDate is set if and only if the
// task is complete.
func (t *Task) SetComplete(done bool, at time.Time) {
	t.IsComplete = done
	if done {
		t.CompleteDate = &at
		return
	}
	t.CompleteDate = nil
}

// RootID is the id of the series this task belongs to.
func (t Task) RootID() string {
	if t.ParentTaskID != nil && *t.ParentTaskID != "" {
		return *t.ParentTaskID
	}
	return t.ID
}

// ShortID is the id prefix shown in chat listings.
func (t Task) ShortID() string {
	if len(t.ID) <= shortIDLen {
		return t.ID
	}
	return t.ID[:shortIDLen]
}

// IsMother reports whether the task is the active head of a recurring series.
func (t Task) IsMother() bool {
	return t.Repeat.Recurring() && !t.IsRecurringInstance && !t.IsComplete
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	cp := t
	if t.CompleteDate != nil {
		at := *t.CompleteDate
		cp.CompleteDate = &at
	}
	if t.ParentTaskID != nil {
		id := *t.ParentTaskID
		cp.ParentTaskID = &id
	}
	return cp
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}
