package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"task-manager/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDB error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, repo *TaskRepository, tasks ...*model.Task) {
	t.Helper()
	for _, task := range tasks {
		if err := repo.Create(context.Background(), task); err != nil {
			t.Fatalf("Create(%q) error: %v", task.Title, err)
		}
	}
}

func TestCreateAssignsIDAndRoundTrips(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	loc := time.FixedZone("BRT", -3*3600)
	task := &model.Task{
		Title:              "Dentist",
		CreationDate:       time.Date(2024, 2, 1, 14, 30, 0, 0, loc),
		NextOccurrenceDate: time.Date(2024, 2, 1, 14, 30, 0, 0, loc),
		Category:           model.CategoryHealth,
		Priority:           model.PriorityHigh,
		Tint:               model.TintRed,
		Repeat:             model.RepeatNever,
	}
	seed(t, repo, task)
	if task.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	got, err := repo.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if got.Title != "Dentist" || got.Category != model.CategoryHealth || got.Priority != model.PriorityHigh || got.Tint != model.TintRed {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if !got.CreationDate.Equal(task.CreationDate) {
		t.Fatalf("CreationDate = %v, want %v", got.CreationDate, task.CreationDate)
	}
}

func TestUnknownRepeatLoadsAsNever(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)
	task := &model.Task{Title: "Legacy", CreationDate: at(2024, 1, 1, 9), Repeat: model.RepeatDaily}
	seed(t, repo, task)

	if err := db.Exec("UPDATE tasks SET repeat_option = ? WHERE id = ?", "Diariamente", task.ID).Error; err != nil {
		t.Fatalf("raw update error: %v", err)
	}
	got, err := repo.FindByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if got.Repeat != model.RepeatNever {
		t.Fatalf("Repeat = %q, want never", got.Repeat)
	}
}

func TestFindByPrefix(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	seed(t, repo,
		&model.Task{ID: "abc11111", Title: "one", CreationDate: at(2024, 1, 1, 9)},
		&model.Task{ID: "abc22222", Title: "two", CreationDate: at(2024, 1, 1, 9)},
	)

	got, err := repo.FindByPrefix(ctx, "ABC1")
	if err != nil {
		t.Fatalf("FindByPrefix error: %v", err)
	}
	if got.Title != "one" {
		t.Fatalf("FindByPrefix returned %q", got.Title)
	}
	if _, err := repo.FindByPrefix(ctx, "abc"); !errors.Is(err, ErrAmbiguousID) {
		t.Fatalf("FindByPrefix(abc) error = %v, want ErrAmbiguousID", err)
	}
	if _, err := repo.FindByPrefix(ctx, "zzz"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("FindByPrefix(zzz) error = %v, want not found", err)
	}
	if _, err := repo.FindByPrefix(ctx, "%"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("FindByPrefix(%%) error = %v, want not found", err)
	}
}

func TestListFilters(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	done := &model.Task{Title: "Buy milk", CreationDate: at(2024, 5, 2, 8), Category: model.CategoryShopping}
	done.SetComplete(true, at(2024, 5, 2, 9))
	seed(t, repo,
		&model.Task{Title: "Standup", CreationDate: at(2024, 5, 2, 10), Category: model.CategoryWork},
		done,
		&model.Task{Title: "Buy bread", CreationDate: at(2024, 5, 3, 8), Category: model.CategoryShopping},
		&model.Task{Title: "100% focus", CreationDate: at(2024, 5, 2, 7), Category: model.CategoryWork},
	)

	dayTasks, err := repo.List(ctx, TaskFilter{From: at(2024, 5, 2, 0), To: at(2024, 5, 3, 0)})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(dayTasks) != 3 {
		t.Fatalf("day view returned %d tasks, want 3", len(dayTasks))
	}
	if dayTasks[0].Title != "100% focus" || dayTasks[2].Title != "Standup" {
		t.Fatalf("day view not ordered by creation date: %q .. %q", dayTasks[0].Title, dayTasks[2].Title)
	}

	shopping, err := repo.List(ctx, TaskFilter{Category: model.CategoryShopping, Search: "buy"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(shopping) != 2 {
		t.Fatalf("shopping search returned %d tasks, want 2", len(shopping))
	}

	open := false
	openShopping, err := repo.List(ctx, TaskFilter{Category: model.CategoryShopping, Completed: &open})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(openShopping) != 1 || openShopping[0].Title != "Buy bread" {
		t.Fatalf("open shopping = %+v", openShopping)
	}

	percent, err := repo.List(ctx, TaskFilter{Search: "%"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(percent) != 1 {
		t.Fatalf("literal %% search returned %d tasks, want 1", len(percent))
	}
}

func TestListDueMothers(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	due := &model.Task{Title: "due", CreationDate: at(2024, 1, 1, 9), NextOccurrenceDate: at(2024, 1, 2, 9), Repeat: model.RepeatDaily}
	later := &model.Task{Title: "later", CreationDate: at(2024, 1, 3, 9), NextOccurrenceDate: at(2024, 1, 4, 9), Repeat: model.RepeatDaily}
	never := &model.Task{Title: "never", CreationDate: at(2024, 1, 1, 9), NextOccurrenceDate: at(2024, 1, 1, 9), Repeat: model.RepeatNever}
	instance := &model.Task{Title: "instance", CreationDate: at(2024, 1, 1, 9), NextOccurrenceDate: at(2024, 1, 2, 9), Repeat: model.RepeatDaily, IsRecurringInstance: true}
	complete := &model.Task{Title: "complete", CreationDate: at(2024, 1, 1, 9), NextOccurrenceDate: at(2024, 1, 2, 9), Repeat: model.RepeatDaily}
	complete.SetComplete(true, at(2024, 1, 1, 10))
	seed(t, repo, due, later, never, instance, complete)

	tasks, err := repo.ListDueMothers(ctx, at(2024, 1, 3, 0))
	if err != nil {
		t.Fatalf("ListDueMothers error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "due" {
		t.Fatalf("ListDueMothers = %+v, want only due", tasks)
	}
}

func TestApplyRecurrenceCommits(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	mother := &model.Task{Title: "m", CreationDate: at(2024, 1, 1, 9), NextOccurrenceDate: at(2024, 1, 2, 9), Repeat: model.RepeatDaily}
	seed(t, repo, mother)

	root := mother.ID
	instance := model.Task{ID: "inst-1", Title: "m", CreationDate: at(2024, 1, 2, 9), Repeat: model.RepeatDaily, ParentTaskID: &root, IsRecurringInstance: true}
	advanced := mother.Clone()
	advanced.CreationDate = at(2024, 1, 2, 9)
	advanced.NextOccurrenceDate = at(2024, 1, 3, 9)

	if err := repo.ApplyRecurrence(ctx, []model.Task{instance}, []model.Task{advanced}); err != nil {
		t.Fatalf("ApplyRecurrence error: %v", err)
	}

	got, err := repo.FindByID(ctx, mother.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if !got.NextOccurrenceDate.Equal(at(2024, 1, 3, 9)) {
		t.Fatalf("mother NextOccurrenceDate = %v", got.NextOccurrenceDate)
	}
	inst, err := repo.FindByID(ctx, "inst-1")
	if err != nil {
		t.Fatalf("instance not persisted: %v", err)
	}
	if inst.ParentTaskID == nil || *inst.ParentTaskID != root || !inst.IsRecurringInstance {
		t.Fatalf("instance lineage = %+v", inst)
	}
}

func TestApplyRecurrenceRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	mother := &model.Task{Title: "m", CreationDate: at(2024, 1, 1, 9), NextOccurrenceDate: at(2024, 1, 2, 9), Repeat: model.RepeatDaily}
	seed(t, repo, mother)

	failure := errors.New("disk full")
	if err := db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		_ = tx.AddError(failure)
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	instance := model.Task{ID: "inst-1", Title: "m", CreationDate: at(2024, 1, 2, 9), IsRecurringInstance: true}
	advanced := mother.Clone()
	advanced.CreationDate = at(2024, 1, 2, 9)
	advanced.NextOccurrenceDate = at(2024, 1, 3, 9)

	err := repo.ApplyRecurrence(ctx, []model.Task{instance}, []model.Task{advanced})
	if !errors.Is(err, failure) {
		t.Fatalf("ApplyRecurrence error = %v, want %v", err, failure)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 1 {
		t.Fatalf("task count = %d after rollback, want 1", n)
	}
	got, err := repo.FindByID(ctx, mother.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if !got.NextOccurrenceDate.Equal(at(2024, 1, 2, 9)) {
		t.Fatalf("mother advanced despite rollback: %v", got.NextOccurrenceDate)
	}
}

func TestDelete(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	task := &model.Task{Title: "x", CreationDate: at(2024, 1, 1, 9)}
	seed(t, repo, task)

	if err := repo.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(ctx, task.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("second Delete error = %v, want not found", err)
	}
}

func TestCounts(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()
	early := &model.Task{Title: "early", CreationDate: at(2024, 1, 1, 9), Category: model.CategoryWork}
	early.SetComplete(true, at(2024, 1, 1, 12))
	recent := &model.Task{Title: "recent", CreationDate: at(2024, 1, 10, 9), Category: model.CategoryWork}
	recent.SetComplete(true, at(2024, 1, 10, 12))
	seed(t, repo, early, recent,
		&model.Task{Title: "open work", CreationDate: at(2024, 1, 10, 9), Category: model.CategoryWork},
		&model.Task{Title: "open health", CreationDate: at(2024, 1, 10, 9), Category: model.CategoryHealth},
		&model.Task{Title: "open health 2", CreationDate: at(2024, 1, 11, 9), Category: model.CategoryHealth},
	)

	total, err := repo.Count(ctx)
	if err != nil || total != 5 {
		t.Fatalf("Count = %d, %v; want 5", total, err)
	}
	all, err := repo.CountCompleted(ctx, time.Time{})
	if err != nil || all != 2 {
		t.Fatalf("CountCompleted(all) = %d, %v; want 2", all, err)
	}
	since, err := repo.CountCompleted(ctx, at(2024, 1, 5, 0))
	if err != nil || since != 1 {
		t.Fatalf("CountCompleted(since) = %d, %v; want 1", since, err)
	}

	rows, err := repo.CountOpenByCategory(ctx)
	if err != nil {
		t.Fatalf("CountOpenByCategory error: %v", err)
	}
	got := map[model.Category]int64{}
	for _, row := range rows {
		got[row.Category] = row.Count
	}
	if got[model.CategoryHealth] != 2 || got[model.CategoryWork] != 1 {
		t.Fatalf("CountOpenByCategory = %v", got)
	}
}
