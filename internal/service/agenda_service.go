package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"task-manager/internal/model"
	"task-manager/internal/repository"
)

// AgendaService builds human-readable summaries for the periodic report.
type AgendaService struct {
	tasks *TaskService
}

func NewAgendaService(tasks *TaskService) *AgendaService {
	return &AgendaService{tasks: tasks}
}

// DailySummary renders the agenda of the day containing now as Telegram
// HTML: open tasks of the day, tasks already done today and open tasks left
// over from earlier days.
func (s *AgendaService) DailySummary(ctx context.Context, now time.Time) (string, error) {
	loc := s.tasks.Location()
	now = now.In(loc)

	today, err := s.tasks.ListDay(ctx, now, repository.TaskFilter{})
	if err != nil {
		return "", err
	}
	overdue, err := s.tasks.ListOverdue(ctx, now)
	if err != nil {
		return "", err
	}

	var open []model.Task
	done := 0
	for _, task := range today {
		if task.IsComplete {
			done++
			continue
		}
		open = append(open, task)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily agenda</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon 02.01.2006")))

	builder.WriteString("🔥 <b>Today</b>\n")
	if len(open) == 0 {
		builder.WriteString("— nothing left for today\n")
	} else {
		for _, task := range open {
			builder.WriteString(FormatTask(task, now))
		}
	}
	if done > 0 {
		builder.WriteString(fmt.Sprintf("✅ %d done today\n", done))
	}

	if len(overdue) > 0 {
		builder.WriteString("\n⚠️ <b>Overdue</b>\n")
		for _, task := range overdue {
			builder.WriteString(FormatTask(task, now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTask renders one task as an HTML listing entry. Dates are shown in
// the location of now.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := task.Priority.Icon()
	if task.IsComplete {
		icon = "✅"
	} else if task.CreationDate.Before(now) && !sameDay(task.CreationDate, now) {
		icon = "⚠️"
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	if task.IsComplete {
		title = "<s>" + title + "</s>"
	}
	sb.WriteString(fmt.Sprintf("%s <code>%s</code> %s", icon, task.ShortID(), title))
	sb.WriteString(fmt.Sprintf(" <i>(%s %s)</i>", task.Category.Icon(), task.Category.Label()))

	at := task.CreationDate.In(now.Location())
	if sameDay(at, now) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", at.Format("15:04")))
	} else {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", at.Format("2006-01-02 15:04")))
	}
	if task.Repeat.Recurring() {
		if task.IsRecurringInstance {
			sb.WriteString(fmt.Sprintf(" · %s %s occurrence", task.Repeat.Icon(), task.Repeat))
		} else {
			next := task.NextOccurrenceDate.In(now.Location())
			sb.WriteString(fmt.Sprintf(" · %s %s, next %s", task.Repeat.Icon(), task.Repeat, next.Format("2006-01-02")))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
