package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/model"
	"task-manager/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageDate
	stageCategory
	stagePriority
	stageRepeat
	stageTint
)

// conversationState is the step-by-step task form. editing is nil while a
// new task is being created.
type conversationState struct {
	stage   conversationStage
	editing *model.Task
	input   service.TaskInput
	patch   service.TaskPatch
}

func (s *conversationState) creating() bool { return s.editing == nil }

func (b *Bot) startConversation(ctx context.Context, chatID int64, task *model.Task) error {
	b.clearConfirmation(chatID)
	state := &conversationState{stage: stageTitle, editing: task}
	b.setConversation(chatID, state)

	if state.creating() {
		b.log.Info().Int64("chat", chatID).Msg("start new task conversation")
		return b.sendWithReplyMarkup(ctx, chatID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
	}
	b.log.Info().Int64("chat", chatID).Str("task", task.ID).Msg("start edit conversation")
	text := fmt.Sprintf("✏️ Editing <code>%s</code>. Send a new value or «Skip» to keep the current one.\n<b>Title</b> (current: %s)",
		task.ShortID(), escape(task.Title))
	return b.sendWithReplyMarkup(ctx, chatID, text, skipKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	skip := isSkipInput(text)

	switch state.stage {
	case stageTitle:
		if skip || text == "" {
			if state.creating() {
				return b.sendWithReplyMarkup(ctx, chatID, "A task needs a title. What should it be called?", cancelKeyboard())
			}
		} else {
			state.setTitle(text)
		}
		state.stage = stageDescription
		return b.sendWithReplyMarkup(ctx, chatID, b.prompt(state, "📝 Add a short description", currentDescription), skipKeyboard())

	case stageDescription:
		if !skip {
			state.setDescription(text)
		}
		state.stage = stageDate
		return b.sendWithReplyMarkup(ctx, chatID,
			b.prompt(state, "⏰ When? <code>2025-11-30 18:00</code>, <code>18:00</code>, <code>tomorrow 9:00</code>", currentDate(b.loc)), skipKeyboard())

	case stageDate:
		if !skip {
			at, err := parseDateTime(text, b.now(), b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(ctx, chatID,
					"I cannot read that date. Try <code>2025-11-30 18:00</code>, <code>18:00</code> or «Skip».", skipKeyboard())
			}
			state.setDate(at)
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(ctx, chatID, b.prompt(state, "🏷 Category", currentCategory), categoryKeyboard())

	case stageCategory:
		if !skip {
			if _, err := model.ParseCategory(stripIcon(text)); err != nil {
				return b.sendWithReplyMarkup(ctx, chatID, "Pick one of the categories below.", categoryKeyboard())
			}
			state.setCategory(stripIcon(text))
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(ctx, chatID, b.prompt(state, "❗ Priority", currentPriority), priorityKeyboard())

	case stagePriority:
		if !skip {
			if _, err := model.ParsePriority(stripIcon(text)); err != nil {
				return b.sendWithReplyMarkup(ctx, chatID, "Pick low, medium or high.", priorityKeyboard())
			}
			state.setPriority(stripIcon(text))
		}
		state.stage = stageRepeat
		return b.sendWithReplyMarkup(ctx, chatID, b.prompt(state, "🔁 Repeat", currentRepeat), repeatKeyboard())

	case stageRepeat:
		if !skip {
			if _, err := model.ParseRepeat(stripIcon(text)); err != nil {
				return b.sendWithReplyMarkup(ctx, chatID, "Pick never, daily, weekly or monthly.", repeatKeyboard())
			}
			state.setRepeat(stripIcon(text))
		}
		state.stage = stageTint
		return b.sendWithReplyMarkup(ctx, chatID, b.prompt(state, "🎨 Colour", currentTint), tintKeyboard())

	case stageTint:
		if !skip {
			if _, err := model.ParseTint(stripIcon(text)); err != nil {
				return b.sendWithReplyMarkup(ctx, chatID, "Pick one of the colours below.", tintKeyboard())
			}
			state.setTint(stripIcon(text))
		}
		err := b.finishConversation(ctx, chatID, state)
		b.clearConversation(chatID)
		return err

	default:
		b.clearConversation(chatID)
		return b.sendText(ctx, chatID, "The dialog was reset. Try again with /newtask.")
	}
}

func (b *Bot) finishConversation(ctx context.Context, chatID int64, state *conversationState) error {
	var (
		task *model.Task
		err  error
	)
	if state.creating() {
		task, err = b.svc.Tasks.CreateTask(ctx, state.input)
	} else {
		task, err = b.svc.Tasks.UpdateTask(ctx, state.editing.ID, state.patch)
	}
	if err != nil {
		return b.replyLookupError(ctx, chatID, err)
	}

	b.log.Info().Str("task", task.ID).Bool("created", state.creating()).Str("repeat", string(task.Repeat)).Msg("task saved")

	header := "✅ <b>Task saved</b>"
	if !state.creating() {
		header = "✅ <b>Task updated</b>"
	}
	return b.sendText(ctx, chatID, header+"\n"+formatSummary(*task, b.loc))
}

// prompt appends the current value when editing.
func (b *Bot) prompt(state *conversationState, question string, current func(model.Task) string) string {
	if state.creating() {
		return question + " (or «Skip»)."
	}
	return fmt.Sprintf("%s (current: %s)", question, escape(current(*state.editing)))
}

func (s *conversationState) setTitle(v string) {
	if s.creating() {
		s.input.Title = v
		return
	}
	s.patch.Title = &v
}

func (s *conversationState) setDescription(v string) {
	if s.creating() {
		s.input.Description = v
		return
	}
	s.patch.Description = &v
}

func (s *conversationState) setDate(v time.Time) {
	if s.creating() {
		s.input.Date = v
		return
	}
	s.patch.Date = &v
}

func (s *conversationState) setCategory(v string) {
	if s.creating() {
		s.input.Category = v
		return
	}
	s.patch.Category = &v
}

func (s *conversationState) setPriority(v string) {
	if s.creating() {
		s.input.Priority = v
		return
	}
	s.patch.Priority = &v
}

func (s *conversationState) setRepeat(v string) {
	if s.creating() {
		s.input.Repeat = v
		return
	}
	s.patch.Repeat = &v
}

func (s *conversationState) setTint(v string) {
	if s.creating() {
		s.input.Tint = v
		return
	}
	s.patch.Tint = &v
}

func currentDescription(t model.Task) string {
	if t.Description == "" {
		return "none"
	}
	return t.Description
}

func currentDate(loc *time.Location) func(model.Task) string {
	return func(t model.Task) string {
		return t.CreationDate.In(loc).Format("2006-01-02 15:04")
	}
}

func currentCategory(t model.Task) string { return string(t.Category) }
func currentPriority(t model.Task) string { return string(t.Priority) }
func currentRepeat(t model.Task) string   { return string(t.Repeat) }
func currentTint(t model.Task) string     { return string(t.Tint) }
