package recurrence

import (
	"fmt"
	"testing"
	"time"

	"task-manager/internal/model"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("spawn-%d", n)
	}
}

func newTestEngine() *Engine {
	return NewEngine(time.UTC, WithIDGenerator(sequentialIDs()))
}

func mother(id string, created time.Time, repeat model.Repeat) model.Task {
	task := model.Task{
		ID:           id,
		Title:        "Water plants",
		Description:  "balcony",
		CreationDate: created,
		Tint:         model.TintGreen,
		Category:     model.CategoryPersonal,
		Priority:     model.PriorityHigh,
		Repeat:       repeat,
	}
	Reschedule(&task, time.UTC)
	return task
}

func TestAdvanceOverdueScenario(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	tasks := []model.Task{mother("m1", day(2024, 1, 1), model.RepeatDaily)}

	res := e.AdvanceOverdue(tasks, day(2024, 1, 3))

	if len(res.Spawned) != 1 {
		t.Fatalf("spawned %d instances, want 1", len(res.Spawned))
	}
	inst := res.Spawned[0]
	if !inst.CreationDate.Equal(day(2024, 1, 2)) {
		t.Fatalf("instance CreationDate = %v, want 2024-01-02", inst.CreationDate)
	}
	if !inst.IsRecurringInstance || inst.IsComplete {
		t.Fatalf("instance flags: recurring=%t complete=%t", inst.IsRecurringInstance, inst.IsComplete)
	}
	if inst.ParentTaskID == nil || *inst.ParentTaskID != "m1" {
		t.Fatalf("instance ParentTaskID = %v, want m1", inst.ParentTaskID)
	}
	if inst.Title != "Water plants" || inst.Description != "balcony" || inst.Tint != model.TintGreen ||
		inst.Category != model.CategoryPersonal || inst.Priority != model.PriorityHigh || inst.Repeat != model.RepeatDaily {
		t.Fatalf("instance did not copy descriptive fields: %+v", inst)
	}

	if len(res.Mothers) != 1 {
		t.Fatalf("advanced %d mothers, want 1", len(res.Mothers))
	}
	m := res.Mothers[0]
	if !m.CreationDate.Equal(day(2024, 1, 3)) {
		t.Fatalf("mother CreationDate = %v, want 2024-01-03", m.CreationDate)
	}
	if !m.NextOccurrenceDate.Equal(day(2024, 1, 4)) {
		t.Fatalf("mother NextOccurrenceDate = %v, want 2024-01-04", m.NextOccurrenceDate)
	}
	if m.IsComplete || m.CompleteDate != nil {
		t.Fatal("mother should stay open")
	}
}

func TestAdvanceOverdueIsIdempotent(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	today := day(2024, 6, 10)
	tasks := []model.Task{
		mother("d", day(2024, 6, 9), model.RepeatDaily),
		mother("w", day(2024, 6, 3), model.RepeatWeekly),
		mother("m", day(2024, 5, 10), model.RepeatMonthly),
	}

	first := e.AdvanceOverdue(tasks, today)
	if len(first.Spawned) != 3 {
		t.Fatalf("first pass spawned %d, want 3", len(first.Spawned))
	}

	// Persisted state after the first pass: advanced mothers plus instances.
	next := append(append([]model.Task{}, first.Mothers...), first.Spawned...)
	second := e.AdvanceOverdue(next, today)
	if !second.Empty() {
		t.Fatalf("second pass changed %d/%d tasks, want none", len(second.Spawned), len(second.Mothers))
	}
}

func TestAdvanceOverdueCatchUpSpawnsOnce(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	today := day(2024, 3, 20)
	task := mother("m", day(2024, 3, 9), model.RepeatDaily)
	if !task.NextOccurrenceDate.Equal(day(2024, 3, 10)) {
		t.Fatalf("setup: NextOccurrenceDate = %v", task.NextOccurrenceDate)
	}

	res := e.AdvanceOverdue([]model.Task{task}, today)

	if len(res.Spawned) != 1 {
		t.Fatalf("spawned %d, want exactly 1", len(res.Spawned))
	}
	if !res.Spawned[0].CreationDate.Equal(day(2024, 3, 10)) {
		t.Fatalf("instance dated %v, want the overdue occurrence 2024-03-10", res.Spawned[0].CreationDate)
	}
	m := res.Mothers[0]
	if !m.NextOccurrenceDate.After(today) {
		t.Fatalf("mother NextOccurrenceDate = %v, want after %v", m.NextOccurrenceDate, today)
	}
	if !m.CreationDate.Equal(today) {
		t.Fatalf("mother CreationDate = %v, want %v", m.CreationDate, today)
	}
}

func TestAdvanceOverdueMonthlyCatchUp(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	today := day(2024, 7, 1)
	task := mother("m", day(2024, 1, 31), model.RepeatMonthly)

	res := e.AdvanceOverdue([]model.Task{task}, today)
	if len(res.Spawned) != 1 {
		t.Fatalf("spawned %d, want 1", len(res.Spawned))
	}
	if !res.Spawned[0].CreationDate.Equal(day(2024, 2, 29)) {
		t.Fatalf("instance dated %v, want 2024-02-29", res.Spawned[0].CreationDate)
	}
	if m := res.Mothers[0]; !m.NextOccurrenceDate.After(today) {
		t.Fatalf("mother NextOccurrenceDate = %v, want after %v", m.NextOccurrenceDate, today)
	}
}

func TestAdvanceOverdueLineageUsesRoot(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	root := "root-1"
	continuation := mother("m2", day(2024, 1, 1), model.RepeatWeekly)
	continuation.ParentTaskID = &root

	self := mother("m3", day(2024, 1, 1), model.RepeatWeekly)
	selfID := "m3"
	self.ParentTaskID = &selfID

	res := e.AdvanceOverdue([]model.Task{continuation, self}, day(2024, 1, 8))
	if len(res.Spawned) != 2 {
		t.Fatalf("spawned %d, want 2", len(res.Spawned))
	}
	if got := *res.Spawned[0].ParentTaskID; got != root {
		t.Fatalf("continuation instance parent = %q, want %q", got, root)
	}
	if got := *res.Spawned[1].ParentTaskID; got != "m3" {
		t.Fatalf("self-rooted instance parent = %q, want m3", got)
	}

	// Over several passes every instance still points at the root.
	tasks := []model.Task{mother("r", day(2024, 1, 1), model.RepeatDaily)}
	var spawned []model.Task
	for d := 2; d <= 6; d++ {
		res := e.AdvanceOverdue(tasks, day(2024, 1, d))
		tasks = append(res.Mothers, res.Spawned...)
		spawned = append(spawned, res.Spawned...)
	}
	if len(spawned) != 5 {
		t.Fatalf("spawned %d over five days, want 5", len(spawned))
	}
	for _, inst := range spawned {
		if *inst.ParentTaskID != "r" {
			t.Fatalf("instance %s parent = %q, want r", inst.ID, *inst.ParentTaskID)
		}
	}
}

func TestAdvanceOverdueSkipsNonCandidates(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	today := day(2024, 4, 10)

	never := mother("never", day(2024, 4, 1), model.RepeatNever)
	complete := mother("complete", day(2024, 4, 1), model.RepeatDaily)
	complete.SetComplete(true, day(2024, 4, 1))
	instance := mother("instance", day(2024, 4, 1), model.RepeatDaily)
	instance.IsRecurringInstance = true
	future := mother("future", day(2024, 4, 12), model.RepeatDaily)
	notYet := mother("not-yet", day(2024, 4, 10), model.RepeatDaily)

	res := e.AdvanceOverdue([]model.Task{never, complete, instance, future, notYet}, today)
	if !res.Empty() {
		t.Fatalf("expected no changes, got %d spawned %d mothers", len(res.Spawned), len(res.Mothers))
	}
}

func TestAdvanceOverdueUsesDayGranularity(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	task := mother("m", time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC), model.RepeatDaily)

	// The next occurrence is at 21:00 on the 2nd; it is due on the 2nd at any time of day.
	res := e.AdvanceOverdue([]model.Task{task}, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC))
	if len(res.Spawned) != 1 {
		t.Fatalf("spawned %d, want 1", len(res.Spawned))
	}
	if want := time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC); !res.Spawned[0].CreationDate.Equal(want) {
		t.Fatalf("instance CreationDate = %v, want %v", res.Spawned[0].CreationDate, want)
	}
	if want := time.Date(2024, 1, 3, 21, 0, 0, 0, time.UTC); !res.Mothers[0].NextOccurrenceDate.Equal(want) {
		t.Fatalf("mother NextOccurrenceDate = %v, want %v", res.Mothers[0].NextOccurrenceDate, want)
	}
}

func TestAdvanceOverdueDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	tasks := []model.Task{mother("m", day(2024, 1, 1), model.RepeatDaily)}
	before := tasks[0]

	_ = e.AdvanceOverdue(tasks, day(2024, 1, 5))

	if !tasks[0].CreationDate.Equal(before.CreationDate) || !tasks[0].NextOccurrenceDate.Equal(before.NextOccurrenceDate) {
		t.Fatal("input task was modified")
	}
}

func TestAdvanceOverdueReopensCompletedDate(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	task := mother("m", day(2024, 1, 1), model.RepeatDaily)
	stale := day(2023, 12, 31)
	// A row with an inconsistent completion timestamp is repaired on advance.
	task.CompleteDate = &stale

	res := e.AdvanceOverdue([]model.Task{task}, day(2024, 1, 2))
	if len(res.Mothers) != 1 {
		t.Fatalf("advanced %d mothers, want 1", len(res.Mothers))
	}
	if res.Mothers[0].CompleteDate != nil {
		t.Fatal("mother CompleteDate should be cleared")
	}
}
