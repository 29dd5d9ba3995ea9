package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
)

const defaultQueueSize = 256

type eventKind int

const (
	eventSchedule eventKind = iota
	eventRemove
)

type event struct {
	kind   eventKind
	task   model.Task
	taskID string
}

// Center keeps pending reminders and delivers the due ones.
type Center struct {
	log    zerolog.Logger
	loc    *time.Location
	now    func() time.Time
	events chan event

	mu      sync.Mutex
	pending map[string]Reminder
	sender  Sender
}

type CenterOption func(*Center)

func WithClock(now func() time.Time) CenterOption {
	return func(c *Center) {
		if now != nil {
			c.now = now
		}
	}
}

func WithQueueSize(n int) CenterOption {
	return func(c *Center) {
		if n > 0 {
			c.events = make(chan event, n)
		}
	}
}

func NewCenter(loc *time.Location, log zerolog.Logger, opts ...CenterOption) *Center {
	if loc == nil {
		loc = time.Local
	}
	c := &Center{
		log:     log.With().Str("component", "notify").Logger(),
		loc:     loc,
		now:     time.Now,
		events:  make(chan event, defaultQueueSize),
		pending: make(map[string]Reminder),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSender installs the delivery channel. Reminders that come due without
// a sender are dropped with a warning.
func (c *Center) SetSender(s Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = s
}

func (c *Center) OnTaskScheduleChanged(task model.Task) {
	c.enqueue(event{kind: eventSchedule, task: task.Clone(), taskID: task.ID})
}

func (c *Center) OnTaskRemoved(taskID string) {
	c.enqueue(event{kind: eventRemove, taskID: taskID})
}

func (c *Center) enqueue(ev event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Str("task", ev.taskID).Msg("reminder queue full, event dropped")
	}
}

// Run applies queued events until ctx is cancelled.
func (c *Center) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.apply(ev)
		}
	}
}

// Flush applies every event queued so far.
func (c *Center) Flush() {
	for {
		select {
		case ev := <-c.events:
			c.apply(ev)
		default:
			return
		}
	}
}

func (c *Center) apply(ev event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.kind == eventRemove {
		if _, ok := c.pending[ev.taskID]; ok {
			delete(c.pending, ev.taskID)
			c.log.Debug().Str("task", ev.taskID).Msg("reminder cancelled")
		}
		return
	}

	r, ok := reminderFor(ev.task, c.now(), c.loc)
	if !ok {
		delete(c.pending, ev.taskID)
		return
	}
	c.pending[r.TaskID] = r
	c.log.Debug().Str("task", r.TaskID).Time("fire_at", r.FireAt).Str("repeat", string(r.Repeat)).Msg("reminder scheduled")
}

// Pending returns the scheduled reminders ordered by fire time.
func (c *Center) Pending() []Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Reminder, 0, len(c.pending))
	for _, r := range c.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Dispatch delivers every reminder due at now. Repeating reminders are
// re-armed for their next match, one-shot reminders are removed. It returns
// the number of reminders handed to the sender.
func (c *Center) Dispatch(ctx context.Context, now time.Time) int {
	c.Flush()

	c.mu.Lock()
	sender := c.sender
	var due []Reminder
	for id, r := range c.pending {
		if r.FireAt.After(now) {
			continue
		}
		due = append(due, r)
		if r.Repeat == model.RepeatNever {
			delete(c.pending, id)
			continue
		}
		// A stalled poll must not leave the next match in the past.
		from := r.FireAt
		if now.After(from) {
			from = now
		}
		next, ok := NextFire(r.anchor, r.Repeat, from.Add(time.Second), c.loc)
		if !ok {
			delete(c.pending, id)
			continue
		}
		r.FireAt = next
		c.pending[id] = r
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })

	sent := 0
	for _, r := range due {
		if sender == nil {
			c.log.Warn().Str("task", r.TaskID).Msg("reminder due but no sender configured")
			continue
		}
		if err := sender.SendReminder(ctx, r); err != nil {
			c.log.Error().Err(err).Str("task", r.TaskID).Msg("send reminder")
			continue
		}
		sent++
	}
	return sent
}
