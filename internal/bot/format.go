package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/model"
	"task-manager/internal/repository"
	"task-manager/internal/service"
)

const (
	btnSkip             = "⏭️ Skip"
	btnConfirm          = "✅ Confirm"
	btnCancel           = "↩️ Cancel"
	btnCancelDialog     = "⏪ Stop input"
	menuLabelNewTask    = "➕ New task"
	menuLabelToday      = "📋 Today"
	menuLabelCategories = "📂 Categories"
	menuLabelStats      = "📊 Stats"
	menuLabelHelp       = "ℹ️ Help"
)

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCategories),
			tgbotapi.NewKeyboardButton(menuLabelStats),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return formKeyboard(false)
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return formKeyboard(true)
}

// formKeyboard lays out option buttons three per row followed by the
// skip/stop row.
func formKeyboard(withSkip bool, options ...string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, opt := range options {
		row = append(row, tgbotapi.NewKeyboardButton(opt))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	last := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnCancelDialog)}
	if withSkip {
		last = append([]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnSkip)}, last...)
	}
	rows = append(rows, last)

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	opts := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		opts = append(opts, c.Icon()+" "+string(c))
	}
	return formKeyboard(true, opts...)
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	opts := make([]string, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		opts = append(opts, p.Icon()+" "+string(p))
	}
	return formKeyboard(true, opts...)
}

func repeatKeyboard() tgbotapi.ReplyKeyboardMarkup {
	opts := make([]string, 0, len(model.RepeatOptions))
	for _, r := range model.RepeatOptions {
		opts = append(opts, strings.TrimSpace(r.Icon()+" "+string(r)))
	}
	return formKeyboard(true, opts...)
}

func tintKeyboard() tgbotapi.ReplyKeyboardMarkup {
	opts := make([]string, 0, len(model.Tints))
	for _, t := range model.Tints {
		opts = append(opts, string(t))
	}
	return formKeyboard(true, opts...)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}

// stripIcon drops the emoji prefix keyboard buttons carry.
func stripIcon(text string) string {
	return strings.TrimSpace(strings.TrimLeftFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

var errBadDate = errors.New("unrecognised date")

// parseDateTime reads the dates typed into the task form. A bare date keeps
// the current time of day; a bare time means today.
func parseDateTime(text string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	value := strings.ToLower(strings.Join(strings.Fields(text), " "))

	base := now
	switch {
	case strings.HasPrefix(value, "today"):
		value = strings.TrimSpace(strings.TrimPrefix(value, "today"))
	case strings.HasPrefix(value, "tomorrow"):
		value = strings.TrimSpace(strings.TrimPrefix(value, "tomorrow"))
		base = now.AddDate(0, 0, 1)
	default:
		for _, layout := range []string{"2006-01-02 15:04", "02.01.2006 15:04"} {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				return t, nil
			}
		}
		for _, layout := range []string{"2006-01-02", "02.01.2006"} {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), now.Hour(), now.Minute(), 0, 0, loc), nil
			}
		}
	}

	if value == "" {
		return time.Date(base.Year(), base.Month(), base.Day(), now.Hour(), now.Minute(), 0, 0, loc), nil
	}
	clock, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return time.Date(base.Year(), base.Month(), base.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

func confirmData(req confirmationRequest) string {
	if req.action == actionDelete {
		return "d:" + req.taskID
	}
	return "c:" + req.taskID
}

func parseConfirmData(data string) (confirmationRequest, bool) {
	kind, id, ok := strings.Cut(data, ":")
	if !ok || id == "" {
		return confirmationRequest{}, false
	}
	switch kind {
	case "c":
		return confirmationRequest{taskID: id, action: actionComplete}, true
	case "d":
		return confirmationRequest{taskID: id, action: actionDelete}, true
	default:
		return confirmationRequest{}, false
	}
}

func formatSummary(task model.Task, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("• <b>ID:</b> <code>%s</code>\n", task.ShortID()))
	sb.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	sb.WriteString(fmt.Sprintf("• <b>When:</b> %s\n", task.CreationDate.In(loc).Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("• <b>Category:</b> %s %s\n", task.Category.Icon(), task.Category.Label()))
	sb.WriteString(fmt.Sprintf("• <b>Priority:</b> %s %s\n", task.Priority.Icon(), task.Priority))
	if task.Repeat.Recurring() {
		sb.WriteString(fmt.Sprintf("• <b>Repeat:</b> %s %s, next %s\n", task.Repeat.Icon(), task.Repeat,
			task.NextOccurrenceDate.In(loc).Format("2006-01-02 15:04")))
	}
	sb.WriteString(fmt.Sprintf("• <b>Colour:</b> %s", task.Tint))
	return sb.String()
}

func formatCategories(rows []repository.CategoryCount) string {
	var sb strings.Builder
	sb.WriteString("📂 <b>Open tasks per category</b>\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("• %s %s: %d\n", row.Category.Icon(), row.Category.Label(), row.Count))
	}
	return strings.TrimSpace(sb.String())
}

func formatStats(st service.Stats) string {
	return fmt.Sprintf("📊 <b>Statistics</b>\n"+
		"• Completed: %d of %d\n"+
		"• Completion rate: %.0f%%\n"+
		"• This week: %d\n"+
		"• This month: %d",
		st.TotalCompleted, st.Total, st.CompletionRate, st.CompletedWeek, st.CompletedMonth)
}

func categoryNames() string {
	names := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func shortID(id string) string {
	return model.Task{ID: id}.ShortID()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}
