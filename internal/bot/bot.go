package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"task-manager/internal/config"
	"task-manager/internal/model"
	"task-manager/internal/notify"
	"task-manager/internal/repository"
	"task-manager/internal/service"
)

// ErrNoChat is returned when there is nobody to deliver a message to yet.
var ErrNoChat = errors.New("no chat registered, send /start to the bot first")

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancelPrefix   = "cancel:"
)

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID string
	action confirmationAction
}

// Services groups the business logic the bot talks to.
type Services struct {
	Tasks      *service.TaskService
	Stats      *service.StatsService
	Categories *service.CategoryService
	Agenda     *service.AgendaService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api     *tgbotapi.BotAPI
	svc     Services
	log     zerolog.Logger
	limiter *rate.Limiter
	loc     *time.Location
	now     func() time.Time

	mu            sync.Mutex
	ownerChat     int64
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
}

var _ notify.Sender = (*Bot)(nil)

func New(cfg config.Config, svc Services, log zerolog.Logger) (*Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log = log.With().Str("component", "bot").Logger()
	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	sendRate := cfg.SendRate
	if sendRate <= 0 {
		sendRate = 1
	}

	return &Bot{
		api:           api,
		svc:           svc,
		log:           log,
		limiter:       rate.NewLimiter(rate.Limit(sendRate), sendRate),
		loc:           svc.Tasks.Location(),
		now:           time.Now,
		ownerChat:     cfg.ChatID,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Int64("chat", update.Message.Chat.ID).Msg("handle message")
			}
		}
	}

	return ctx.Err()
}

// SendReminder delivers a due reminder to the owner chat.
func (b *Bot) SendReminder(ctx context.Context, r notify.Reminder) error {
	chatID := b.owner()
	if chatID == 0 {
		return ErrNoChat
	}
	text := fmt.Sprintf("🔔 <b>%s</b>\n%s\n\n<code>%s</code> · %s",
		escape(normalizeTitle(r.Title)), escape(r.Body), shortID(r.TaskID), r.FireAt.In(b.loc).Format("2006-01-02 15:04"))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbCompletePrefix+r.TaskID),
	))
	return b.send(ctx, msg)
}

// SendDailyReports sends the agenda to the owner chat.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	chatID := b.owner()
	if chatID == 0 {
		b.log.Debug().Msg("skip report, no chat registered")
		return nil
	}
	text, err := b.svc.Agenda.DailySummary(ctx, b.now())
	if err != nil {
		return fmt.Errorf("build daily summary: %w", err)
	}
	return b.sendText(ctx, chatID, text)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.authorize(msg) {
		if b.owner() == 0 {
			return b.sendPlain(ctx, msg.Chat.ID, "Send /start to begin.")
		}
		b.log.Warn().Int64("chat", msg.Chat.ID).Msg("message from unknown chat ignored")
		return nil
	}

	chatID := msg.Chat.ID
	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(chatID)
		b.clearConfirmation(chatID)
		return b.sendText(ctx, chatID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info().Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command received")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(chatID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(chatID); state != nil {
		b.log.Debug().Int("stage", int(state.stage)).Msg("conversation step")
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(ctx, chatID, "I did not get that. Use /newtask to add a task or /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(ctx, chatID)
	case "newtask":
		return b.startConversation(ctx, chatID, nil)
	case "edit":
		return b.handleEdit(ctx, chatID, args)
	case "today":
		return b.handleToday(ctx, chatID, args, "")
	case "search":
		return b.handleSearch(ctx, chatID, args)
	case "category":
		return b.handleCategory(ctx, chatID, args)
	case "categories":
		return b.handleCategories(ctx, chatID)
	case "done":
		return b.handleSetComplete(ctx, chatID, args, true)
	case "undo":
		return b.handleSetComplete(ctx, chatID, args, false)
	case "delete":
		return b.handleDelete(ctx, chatID, args)
	case "stats":
		return b.handleStats(ctx, chatID)
	case "report":
		return b.handleReport(ctx, chatID)
	case "cancel":
		b.clearConversation(chatID)
		b.clearConfirmation(chatID)
		return b.sendText(ctx, chatID, "⏪ Input cancelled.")
	default:
		return b.sendText(ctx, chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your tasks, repeat the recurring ones and remind you on time.</b>\n\n%s",
		escape(name), helpText)
	return b.sendText(ctx, msg.Chat.ID, text)
}

const helpText = "Commands:\n" +
	"• /newtask - add a task step by step\n" +
	"• /edit &lt;id&gt; - edit a task\n" +
	"• /today [YYYY-MM-DD] - tasks of a day\n" +
	"• /search &lt;text&gt; - find tasks by title\n" +
	"• /category &lt;name&gt; - today's tasks of one category\n" +
	"• /categories - open tasks per category\n" +
	"• /done &lt;id&gt;, /undo &lt;id&gt; - mark done or reopen\n" +
	"• /delete &lt;id&gt; - delete a task\n" +
	"• /stats - completion statistics\n" +
	"• /report - today's agenda\n" +
	"• /cancel - cancel the current input\n\n" +
	"Ids are the short codes shown in listings."

func (b *Bot) handleHelp(ctx context.Context, chatID int64) error {
	return b.sendText(ctx, chatID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	text, err := b.svc.Agenda.DailySummary(ctx, b.now())
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(ctx, chatID, text)
}

func (b *Bot) handleToday(ctx context.Context, chatID int64, args string, category model.Category) error {
	day := b.now()
	if args != "" {
		parsed, err := time.ParseInLocation("2006-01-02", args, b.loc)
		if err != nil {
			return b.sendText(ctx, chatID, "Use the format <code>2025-11-30</code>, for example /today 2025-11-30")
		}
		day = parsed
	}
	tasks, err := b.svc.Tasks.ListDay(ctx, day, repository.TaskFilter{Category: category})
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}

	header := fmt.Sprintf("📋 <b>%s</b>", day.In(b.loc).Format("Mon 02.01.2006"))
	if category != "" {
		header += fmt.Sprintf(" · %s %s", category.Icon(), category.Label())
	}
	return b.sendTaskList(ctx, chatID, header, tasks, "Nothing planned for this day. Add a task with /newtask.")
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		return b.sendText(ctx, chatID, "Tell me what to look for: /search dentist")
	}
	tasks, err := b.svc.Tasks.Search(ctx, args, "")
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Search failed: %s", escape(err.Error())))
	}
	header := fmt.Sprintf("🔎 <b>Results for</b> «%s»", escape(args))
	return b.sendTaskList(ctx, chatID, header, tasks, "No tasks match.")
}

func (b *Bot) handleCategory(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		return b.sendWithReplyMarkup(ctx, chatID, "Which category? For example /category health", categoryKeyboard())
	}
	category, err := model.ParseCategory(args)
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Unknown category. Choose one of: %s", categoryNames()))
	}
	return b.handleToday(ctx, chatID, "", category)
}

func (b *Bot) handleCategories(ctx context.Context, chatID int64) error {
	rows, err := b.svc.Categories.Summary(ctx)
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Could not load categories: %s", escape(err.Error())))
	}
	return b.sendText(ctx, chatID, formatCategories(rows))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	st, err := b.svc.Stats.Compute(ctx, b.now())
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Could not compute statistics: %s", escape(err.Error())))
	}
	return b.sendText(ctx, chatID, formatStats(st))
}

func (b *Bot) handleEdit(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		return b.sendText(ctx, chatID, "Give me the task id: /edit 1a2b3c4d")
	}
	task, err := b.svc.Tasks.Resolve(ctx, args)
	if err != nil {
		return b.replyLookupError(ctx, chatID, err)
	}
	return b.startConversation(ctx, chatID, task)
}

func (b *Bot) handleSetComplete(ctx context.Context, chatID int64, args string, done bool) error {
	if args == "" {
		return b.sendText(ctx, chatID, "Give me the task id, for example /done 1a2b3c4d")
	}
	task, err := b.svc.Tasks.Resolve(ctx, args)
	if err != nil {
		return b.replyLookupError(ctx, chatID, err)
	}
	task, err = b.svc.Tasks.SetComplete(ctx, task.ID, done)
	if err != nil {
		return b.replyLookupError(ctx, chatID, err)
	}
	b.log.Info().Str("task", task.ID).Bool("done", done).Msg("task completion changed")
	if done {
		return b.sendText(ctx, chatID, fmt.Sprintf("✅ «%s» is done.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(ctx, chatID, fmt.Sprintf("↩️ «%s» is open again.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		return b.sendText(ctx, chatID, "Give me the task id: /delete 1a2b3c4d")
	}
	task, err := b.svc.Tasks.Resolve(ctx, args)
	if err != nil {
		return b.replyLookupError(ctx, chatID, err)
	}
	return b.askConfirmation(ctx, chatID, task, actionDelete)
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(chatID)
		return b.applyConfirmation(ctx, chatID, req)
	case isCancelInput(text):
		b.clearConfirmation(chatID)
		return b.sendText(ctx, chatID, "OK, nothing changed.")
	default:
		prompt := "Confirm or cancel completing the task."
		if req.action == actionDelete {
			prompt = "Confirm or cancel deleting the task."
		}
		return b.sendWithReplyMarkup(ctx, chatID, prompt, confirmKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
	chatID := cb.Message.Chat.ID
	if owner := b.owner(); owner == 0 || owner != chatID {
		return nil
	}

	data := cb.Data
	b.log.Info().Str("data", data).Msg("callback received")
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		task, err := b.svc.Tasks.GetTask(ctx, strings.TrimPrefix(data, cbCompletePrefix))
		if err != nil {
			return b.replyLookupError(ctx, chatID, err)
		}
		if task.IsComplete {
			return b.sendText(ctx, chatID, "The task is already done.")
		}
		return b.askConfirmation(ctx, chatID, task, actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		task, err := b.svc.Tasks.GetTask(ctx, strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return b.replyLookupError(ctx, chatID, err)
		}
		return b.askConfirmation(ctx, chatID, task, actionDelete)
	case strings.HasPrefix(data, cbConfirmPrefix):
		req, ok := parseConfirmData(strings.TrimPrefix(data, cbConfirmPrefix))
		if !ok {
			return nil
		}
		b.clearConfirmation(chatID)
		return b.applyConfirmation(ctx, chatID, req)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(chatID)
		return b.sendText(ctx, chatID, "OK, nothing changed.")
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, task *model.Task, action confirmationAction) error {
	title := escape(normalizeTitle(task.Title))
	text := fmt.Sprintf("Mark «%s» (<code>%s</code>) as done?", title, task.ShortID())
	if action == actionDelete {
		text = fmt.Sprintf("Delete «%s» (<code>%s</code>)?", title, task.ShortID())
		if task.IsMother() {
			text += "\nThe series stops; occurrences already created are kept."
		}
	}
	req := confirmationRequest{taskID: task.ID, action: action}
	b.setConfirmation(chatID, req)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnConfirm, cbConfirmPrefix+confirmData(req)),
		tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbCancelPrefix+task.ID),
	))
	return b.send(ctx, msg)
}

func (b *Bot) applyConfirmation(ctx context.Context, chatID int64, req confirmationRequest) error {
	if req.action == actionDelete {
		task, err := b.svc.Tasks.GetTask(ctx, req.taskID)
		if err != nil {
			return b.replyLookupError(ctx, chatID, err)
		}
		if err := b.svc.Tasks.DeleteTask(ctx, req.taskID); err != nil {
			return b.replyLookupError(ctx, chatID, err)
		}
		b.log.Info().Str("task", req.taskID).Msg("task deleted")
		return b.sendText(ctx, chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title))))
	}

	task, err := b.svc.Tasks.SetComplete(ctx, req.taskID, true)
	if err != nil {
		return b.replyLookupError(ctx, chatID, err)
	}
	b.log.Info().Str("task", task.ID).Msg("task completed")
	if err := b.sendText(ctx, chatID, fmt.Sprintf("✅ «%s» is done.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.handleToday(ctx, chatID, "", "")
}

func (b *Bot) replyLookupError(ctx context.Context, chatID int64, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return b.sendText(ctx, chatID, "Task not found.")
	case errors.Is(err, repository.ErrAmbiguousID):
		return b.sendText(ctx, chatID, "Several tasks start with that id, type a few more characters.")
	case errors.Is(err, service.ErrTitleRequired):
		return b.sendText(ctx, chatID, "The title cannot be empty.")
	default:
		b.log.Error().Err(err).Msg("task operation failed")
		return b.sendText(ctx, chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, header string, tasks []model.Task, empty string) error {
	if len(tasks) == 0 {
		return b.sendText(ctx, chatID, header+"\n"+empty)
	}

	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString(header)
	builder.WriteString("\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(service.FormatTask(task, now))
		if task.IsComplete {
			continue
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %s · %s", task.ShortID(), shortTitle(task.Title, 20)), cbCompletePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	return b.send(ctx, msg)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startConversation(ctx, chatID, nil)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, chatID, "", "")
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(ctx, chatID)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, chatID)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(ctx, chatID)
	default:
		return false, nil
	}
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}
	if _, err := b.api.Send(c); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	return b.send(ctx, msg)
}

func (b *Bot) sendPlain(ctx context.Context, chatID int64, text string) error {
	return b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendWithReplyMarkup(ctx context.Context, chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.send(ctx, msg)
}

// authorize pins the bot to its owner chat. Without a configured chat the
// first chat to send /start becomes the owner.
func (b *Bot) authorize(msg *tgbotapi.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ownerChat == 0 {
		if msg.IsCommand() && msg.Command() == "start" {
			b.ownerChat = msg.Chat.ID
			b.log.Info().Int64("chat", msg.Chat.ID).Msg("owner chat registered")
			return true
		}
		return false
	}
	return msg.Chat.ID == b.ownerChat
}

func (b *Bot) owner() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ownerChat
}

func (b *Bot) getConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[chatID]
	return req, ok
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[chatID] = req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, chatID)
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}
