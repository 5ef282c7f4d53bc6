package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"chore-planner/internal/model"
	"chore-planner/internal/notify"
	"chore-planner/internal/prefs"
	"chore-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageRoom
	stageLevel
	stageDuration
	stageKind
	stageDueDate
	stageFrequency
	stageReadiness
	stageAdvance
	stageReminders
	stageMotivation
)

const (
	btnSkip         = "⏭ Skip"
	btnYes          = "Yes"
	btnNo           = "No"
	btnConfirm      = "✅ Confirm"
	btnCancel       = "↩️ Cancel"
	btnCancelDialog = "⏪ Cancel input"
	btnRepeating    = "🔁 Repeating"
	btnOneTime      = "📅 One-time"

	menuLabelAdd     = "➕ Add chore"
	menuLabelTasks   = "📋 Tasks"
	menuLabelRoutine = "🔁 Routine"
	menuLabelHistory = "🕘 History"

	iconOverdue  = "⚠️"
	iconDueToday = "⏳"
	iconUpcoming = "🟢"

	dateLayout = "2006-01-02"
)

type conversationState struct {
	stage      conversationStage
	draft      service.TaskDraft
	editTaskID uint // zero when creating
}

func (s *conversationState) editing() bool { return s.editTaskID != 0 }

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionReschedule
	actionDelete
	actionReset
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// Bot is the Telegram surface over the planner services. It holds the
// per-user conversation and confirmation state for the multi-step add
// dialog and the destructive-action gates.
type Bot struct {
	api           *tgbotapi.BotAPI
	notifier      *notify.TelegramNotifier
	prefs         *prefs.Store
	taskSvc       *service.TaskService
	routineSvc    *service.RoutineService
	historySvc    *service.HistoryService
	locationSvc   *service.LocationService
	settingsSvc   *service.SettingsService
	allowedChatID int64
	log           *zap.Logger
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(
	api *tgbotapi.BotAPI,
	notifier *notify.TelegramNotifier,
	prefsStore *prefs.Store,
	taskSvc *service.TaskService,
	routineSvc *service.RoutineService,
	historySvc *service.HistoryService,
	locationSvc *service.LocationService,
	settingsSvc *service.SettingsService,
	allowedChatID int64,
	log *zap.Logger,
) *Bot {
	return &Bot{
		api:           api,
		notifier:      notifier,
		prefs:         prefsStore,
		taskSvc:       taskSvc,
		routineSvc:    routineSvc,
		historySvc:    historySvc,
		locationSvc:   locationSvc,
		settingsSvc:   settingsSvc,
		allowedChatID: allowedChatID,
		log:           log,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates", zap.String("account", b.api.Self.UserName))

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}
		msg := update.Message
		if msg.Chat == nil || !msg.Chat.IsPrivate() {
			continue
		}
		if b.allowedChatID != 0 && msg.Chat.ID != b.allowedChatID {
			continue
		}
		if err := b.handleMessage(ctx, msg); err != nil {
			b.log.Warn("handle message", zap.Error(err))
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled. Nothing was changed.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Debug("command",
			zap.Int64("from", msg.From.ID), zap.String("command", msg.Command()))
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't catch that. Use /add to set up a chore, or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "add":
		return b.startTaskConversation(ctx, msg, 0)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "routine":
		return b.handleRoutine(ctx, msg)
	case "history":
		return b.handleHistory(ctx, msg)
	case "rooms":
		return b.handleRooms(ctx, msg)
	case "addroom":
		return b.handleAddRoom(ctx, msg)
	case "setrooms":
		return b.handleSetRooms(ctx, msg)
	case "name":
		return b.handleName(msg)
	case "remindat":
		return b.handleRemindAt(ctx, msg)
	case "done":
		return b.askTaskConfirmation(ctx, msg, actionComplete)
	case "reschedule":
		return b.askTaskConfirmation(ctx, msg, actionReschedule)
	case "delete":
		return b.askTaskConfirmation(ctx, msg, actionDelete)
	case "reset":
		return b.askResetConfirmation(msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	b.notifier.BindChat(msg.Chat.ID)

	user, err := b.ensureUser(msg.From)
	if err != nil {
		return err
	}

	name := user.Name
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf(
		"👋 Hey, %s!\n<b>I keep track of your household chores and remind you when they're due.</b>\n\nCommands:\n"+
			"• /add — set up a chore\n"+
			"• /tasks — what's due around now\n"+
			"• /routine — your repeating chores and workload\n"+
			"• /history — recent activity\n"+
			"• /done &lt;id&gt; — mark a chore done\n"+
			"• /help — the full list",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /add — set up a chore step by step\n" +
		"• /edit &lt;id&gt; — change a chore (Skip keeps the current value)\n" +
		"• /tasks — chores due within a week, either way\n" +
		"• /done &lt;id&gt; — mark a chore done\n" +
		"• /reschedule &lt;id&gt; — push an overdue repeating chore to its next cycle\n" +
		"• /delete &lt;id&gt; — remove a chore\n" +
		"• /routine — repeating chores and your projected workload\n" +
		"• /history — the last 30 things that happened\n" +
		"• /rooms — list your rooms\n" +
		"• /addroom &lt;name&gt; — add a room\n" +
		"• /setrooms &lt;a, b, c&gt; — replace the whole room list\n" +
		"• /name &lt;name&gt; — what I should call you\n" +
		"• /remindat &lt;HH:MM&gt; — reminder time of day (or <code>/remindat default</code> for noon)\n" +
		"• /reset — wipe all chores, rooms and history\n" +
		"• /cancel — abandon the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelAdd:
		return true, b.startTaskConversation(ctx, msg, 0)
	case menuLabelTasks:
		return true, b.handleListTasks(ctx, msg)
	case menuLabelRoutine:
		return true, b.handleRoutine(ctx, msg)
	case menuLabelHistory:
		return true, b.handleHistory(ctx, msg)
	default:
		return false, nil
	}
}

// startTaskConversation begins the add dialog, or the edit dialog when
// editTaskID is nonzero.
func (b *Bot) startTaskConversation(ctx context.Context, msg *tgbotapi.Message, editTaskID uint) error {
	locations, err := b.locationSvc.List(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load rooms: %s", escape(err.Error())))
	}
	if len(locations) == 0 {
		return b.sendText(msg.Chat.ID, "You have no rooms yet. Add one first, e.g. <code>/addroom Kitchen</code>.")
	}

	state := &conversationState{stage: stageName, editTaskID: editTaskID}
	prompt := "🆕 Setting up a chore.\n<b>Step 1:</b> what's it called?"
	if editTaskID != 0 {
		task, err := b.taskSvc.Get(ctx, editTaskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendText(msg.Chat.ID, "Chore not found.")
			}
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		state.draft = draftFromTask(task)
		prompt = fmt.Sprintf("✏️ Editing <b>%s</b> (#%d). Skip keeps the current value.\n<b>Step 1:</b> new name?", escape(task.Name), task.ID)
	}

	b.setConversation(msg.From.ID, state)
	return b.sendWithReplyMarkup(msg.Chat.ID, prompt, b.stageKeyboard(state))
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArgument(msg)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me the chore id: /edit 3")
	}
	return b.startTaskConversation(ctx, msg, taskID)
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	skip := state.editing() && isSkipInput(text)

	switch state.stage {
	case stageName:
		if !skip {
			if text == "" {
				return b.reprompt(msg.Chat.ID, state, "The chore needs a name.")
			}
			state.draft.Name = text
		}
		state.stage = stageRoom
		locations, err := b.locationSvc.List(ctx)
		if err != nil {
			b.clearConversation(msg.From.ID)
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load rooms: %s", escape(err.Error())))
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, "🚪 Which room is it in?", roomsKeyboard(locations, state.editing()))

	case stageRoom:
		if !skip {
			locations, err := b.locationSvc.List(ctx)
			if err != nil {
				b.clearConversation(msg.From.ID)
				return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load rooms: %s", escape(err.Error())))
			}
			loc, ok := matchLocation(locations, text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of your rooms.", roomsKeyboard(locations, state.editing()))
			}
			state.draft.LocationID = loc.ID
		}
		state.stage = stageLevel
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"🧽 How thorough is it?\n1 — once-over, 2 — standard, 3 — deep clean",
			b.stageKeyboard(state))

	case stageLevel:
		if !skip {
			level, err := strconv.Atoi(text)
			if err != nil || !model.Level(level).IsValid() {
				return b.reprompt(msg.Chat.ID, state, "Send 1, 2 or 3.")
			}
			state.draft.Level = model.Level(level)
		}
		state.stage = stageDuration
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏱ How many minutes does it take?", b.stageKeyboard(state))

	case stageDuration:
		if !skip {
			mins, err := strconv.Atoi(text)
			if err != nil || mins < 0 {
				return b.reprompt(msg.Chat.ID, state, "Duration must be a number of minutes, 0 or more.")
			}
			state.draft.DurationMins = mins
		}
		state.stage = stageKind
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Does it repeat, or is it one-time?", kindKeyboard(state.editing()))

	case stageKind:
		if skip {
			if state.draft.RepeatFreqDays > 0 {
				state.stage = stageFrequency
				return b.sendWithReplyMarkup(msg.Chat.ID,
					fmt.Sprintf("📆 Repeat every how many days? (currently every %d)", state.draft.RepeatFreqDays),
					b.stageKeyboard(state))
			}
			state.stage = stageDueDate
			return b.sendWithReplyMarkup(msg.Chat.ID,
				fmt.Sprintf("🗓 When is it due? <code>%s</code> (currently %s)", dateLayout, state.draft.DueAt.Format(dateLayout)),
				b.stageKeyboard(state))
		}
		switch {
		case text == btnRepeating || strings.EqualFold(text, "repeating"):
			state.stage = stageFrequency
			return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Repeat every how many days? (7 = weekly)", b.stageKeyboard(state))
		case text == btnOneTime || strings.EqualFold(text, "one-time"):
			state.draft.RepeatFreqDays = 0
			state.stage = stageDueDate
			return b.sendWithReplyMarkup(msg.Chat.ID,
				fmt.Sprintf("🗓 When is it due? Send a date like <code>%s</code>.", time.Now().Format(dateLayout)),
				b.stageKeyboard(state))
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick Repeating or One-time.", kindKeyboard(state.editing()))
		}

	case stageDueDate:
		if !skip {
			due, err := time.ParseInLocation(dateLayout, text, time.Local)
			if err != nil {
				return b.reprompt(msg.Chat.ID, state, fmt.Sprintf("I can't read that date. Use <code>%s</code>.", dateLayout))
			}
			state.draft.DueAt = due
		}
		state.stage = stageAdvance
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏩ Can it be done ahead of its due date?", yesNoKeyboard(state.editing()))

	case stageFrequency:
		if !skip {
			freq, err := strconv.Atoi(text)
			if err != nil || freq < 1 {
				return b.reprompt(msg.Chat.ID, state, "Frequency must be a whole number of days, 1 or more.")
			}
			state.draft.RepeatFreqDays = freq
		}
		state.stage = stageReadiness
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"📊 How recently was it last done, as a percentage of its cycle?\n100 = just done, 0 = due right now.",
			b.stageKeyboard(state))

	case stageReadiness:
		if !skip {
			pct, err := strconv.Atoi(text)
			if err != nil || pct < 0 || pct > 100 {
				return b.reprompt(msg.Chat.ID, state, "Send a number between 0 and 100.")
			}
			state.draft.ReadinessPercent = pct
		}
		state.stage = stageAdvance
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏩ Can it be done ahead of its due date?", yesNoKeyboard(state.editing()))

	case stageAdvance:
		if !skip {
			value, ok := parseYesNo(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Yes or No?", yesNoKeyboard(state.editing()))
			}
			state.draft.CanBeDoneAdvance = value
		}
		state.stage = stageReminders
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔔 Remind you on the due day?", yesNoKeyboard(state.editing()))

	case stageReminders:
		if !skip {
			value, ok := parseYesNo(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Yes or No?", yesNoKeyboard(state.editing()))
			}
			state.draft.HasReminders = value
		}
		state.stage = stageMotivation
		return b.sendWithReplyMarkup(msg.Chat.ID, "💪 Why does this chore matter? (or Skip)", skipKeyboard())

	case stageMotivation:
		if !isSkipInput(text) {
			state.draft.Motivation = text
		}
		err := b.finishTaskConversation(ctx, msg.Chat.ID, state)
		b.clearConversation(msg.From.ID)
		return err

	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Start again with /add.")
	}
}

func (b *Bot) finishTaskConversation(ctx context.Context, chatID int64, state *conversationState) error {
	now := time.Now()

	var task *model.Task
	var err error
	if state.editing() {
		task, err = b.taskSvc.Update(ctx, state.editTaskID, state.draft, now)
	} else {
		task, err = b.taskSvc.Create(ctx, state.draft, now)
	}
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return b.sendTextWithRemove(chatID, fmt.Sprintf("🚫 %s", escape(validationMessage(err))))
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Could not save the chore: %s", escape(err.Error())))
	}

	var summary strings.Builder
	if state.editing() {
		summary.WriteString("✅ <b>Chore updated</b>\n")
	} else {
		summary.WriteString("✅ <b>Chore saved</b>\n")
	}
	fmt.Fprintf(&summary, "• <b>ID:</b> %d\n", task.ID)
	fmt.Fprintf(&summary, "• <b>Name:</b> %s\n", escape(task.Name))
	fmt.Fprintf(&summary, "• <b>Level:</b> %s\n", task.Level)
	fmt.Fprintf(&summary, "• <b>Due:</b> %s\n", task.DueAt.Format(dateLayout))
	if task.Recurring() {
		fmt.Fprintf(&summary, "• <b>Repeats:</b> %s\n", model.FrequencyLabel(task.RepeatFreqDays))
	}
	if task.HasReminders {
		summary.WriteString("• <b>Reminder:</b> on the due day\n")
	}
	if task.Motivation != "" {
		fmt.Fprintf(&summary, "• <b>Motivation:</b> %s\n", escape(task.Motivation))
	}

	return b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	now := time.Now()
	rows, err := b.taskSvc.DueSoon(ctx, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(rows) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing is due within a week. Enjoy it, or /add something.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Due around now</b>\n\n")
	for _, row := range rows {
		builder.WriteString(formatTaskRow(row, now))
	}
	builder.WriteString("Mark one done with /done &lt;id&gt;, push an overdue one with /reschedule &lt;id&gt;.")
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleRoutine(ctx context.Context, msg *tgbotapi.Message) error {
	overview, err := b.routineSvc.Overview(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load the routine: %s", escape(err.Error())))
	}
	if len(overview.Tasks) == 0 {
		return b.sendText(msg.Chat.ID, "No repeating chores yet. Add one with /add.")
	}

	var builder strings.Builder
	builder.WriteString("🔁 <b>Your routine</b>\n\n")
	for _, row := range overview.Tasks {
		fmt.Fprintf(&builder, "<b>#%d</b> %s · %s\n   %s, %s\n",
			row.ID, escape(row.Name), escape(row.LocationName),
			model.FrequencyLabel(row.RepeatFreqDays), service.HoursAndMins(row.DurationMins))
	}
	totals := overview.Totals
	builder.WriteString("\n<b>Projected workload</b>\n")
	fmt.Fprintf(&builder, "• Daily: %s\n", service.HoursAndMins(totals.DailyMins))
	fmt.Fprintf(&builder, "• Weekly: %s\n", service.HoursAndMins(totals.WeeklyMins))
	fmt.Fprintf(&builder, "• Monthly: %s\n", service.HoursAndMins(totals.MonthlyMins))
	if totals.Overloaded() {
		builder.WriteString("\n⚠️ Over two hours of daily chores. Consider spacing some out.")
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) error {
	entries, err := b.historySvc.Recent(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load history: %s", escape(err.Error())))
	}
	if len(entries) == 0 {
		return b.sendText(msg.Chat.ID, "No history yet.")
	}

	var builder strings.Builder
	builder.WriteString("🕘 <b>Recent activity</b>\n")
	for _, e := range entries {
		fmt.Fprintf(&builder, "• %s — %s: %s (%s)\n",
			e.LoggedAt.Format("2006-01-02 15:04"), e.Type, escape(e.TaskName), escape(e.LocationName))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleRooms(ctx context.Context, msg *tgbotapi.Message) error {
	locations, err := b.locationSvc.List(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load rooms: %s", escape(err.Error())))
	}
	if len(locations) == 0 {
		return b.sendText(msg.Chat.ID, "No rooms yet. Add one with <code>/addroom Kitchen</code>.")
	}
	var builder strings.Builder
	builder.WriteString("🚪 <b>Rooms</b>\n")
	for _, loc := range locations {
		fmt.Fprintf(&builder, "%d. %s\n", loc.ID, escape(loc.Name))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleAddRoom(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	loc, err := b.locationSvc.Add(ctx, name)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("🚫 %s", escape(validationMessage(err))))
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not add the room: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🚪 Room <b>%s</b> added (#%d).", escape(loc.Name), loc.ID))
}

// handleSetRooms rewrites the whole room list from a comma-separated
// argument. Room ids are reassigned from 1; existing tasks keep their
// room by position.
func (b *Bot) handleSetRooms(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "List the rooms comma-separated: /setrooms Kitchen, Bathroom, Bedroom")
	}
	var updates []service.LocationUpdate
	for i, part := range strings.Split(args, ",") {
		updates = append(updates, service.LocationUpdate{ID: uint(i + 1), Name: strings.TrimSpace(part)})
	}
	locations, err := b.locationSvc.ReplaceAll(ctx, updates)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("🚫 %s", escape(validationMessage(err))))
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not update rooms: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🚪 Room list replaced, %d rooms. See /rooms.", len(locations)))
}

func (b *Bot) handleName(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Tell me the name: /name Alex")
	}
	user, err := b.ensureUser(msg.From)
	if err != nil {
		return err
	}
	user.Name = name
	if err := b.prefs.Set(*user); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save it: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("Nice to meet you, %s!", escape(name)))
}

// handleRemindAt sets the time of day reminders fire at and rearms
// every pending reminder to the new time.
func (b *Bot) handleRemindAt(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give me a time: /remindat 18:30, or /remindat default for noon.")
	}

	user, err := b.ensureUser(msg.From)
	if err != nil {
		return err
	}

	if strings.EqualFold(args, "default") {
		user.ReminderHour = prefs.TimeUnset
		user.ReminderMinute = prefs.TimeUnset
	} else {
		at, err := time.Parse("15:04", args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "I can't read that time. Use HH:MM, e.g. 18:30.")
		}
		user.ReminderHour = at.Hour()
		user.ReminderMinute = at.Minute()
	}

	if err := b.prefs.Set(*user); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save it: %s", escape(err.Error())))
	}
	if err := b.taskSvc.SyncReminders(ctx, time.Now()); err != nil {
		b.log.Warn("resync reminders after time change", zap.Error(err))
	}

	if user.HasReminderTime() {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 Reminders will fire at %02d:%02d on the due day.", user.ReminderHour, user.ReminderMinute))
	}
	return b.sendText(msg.Chat.ID, "🔔 Reminders will fire at noon on the due day.")
}

// askTaskConfirmation gates the destructive per-task actions behind an
// explicit confirmation step.
func (b *Bot) askTaskConfirmation(ctx context.Context, msg *tgbotapi.Message, action confirmationAction) error {
	taskID, err := parseIDArgument(msg)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Give me the chore id: /%s 3", msg.Command()))
	}

	task, err := b.taskSvc.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Chore not found.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	var prompt string
	switch action {
	case actionComplete:
		prompt = fmt.Sprintf("Mark <b>%s</b> (#%d) as done?", escape(task.Name), task.ID)
	case actionReschedule:
		prompt = fmt.Sprintf("Push <b>%s</b> (#%d) to its next cycle without doing it?", escape(task.Name), task.ID)
	case actionDelete:
		prompt = fmt.Sprintf("Delete <b>%s</b> (#%d)? This cannot be undone.", escape(task.Name), task.ID)
	}

	b.setConfirmation(msg.From.ID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
}

func (b *Bot) askResetConfirmation(msg *tgbotapi.Message) error {
	b.setConfirmation(msg.From.ID, confirmationRequest{action: actionReset})
	return b.sendWithReplyMarkup(msg.Chat.ID,
		"⚠️ This wipes <b>all</b> chores, rooms and history. Your name and reminder time are kept. Sure?",
		confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.performConfirmedAction(ctx, msg.Chat.ID, req)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendTextWithRemove(msg.Chat.ID, "↩️ Cancelled, nothing was changed.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel first.", confirmKeyboard())
	}
}

func (b *Bot) performConfirmedAction(ctx context.Context, chatID int64, req confirmationRequest) error {
	now := time.Now()
	switch req.action {
	case actionComplete:
		task, err := b.taskSvc.Complete(ctx, req.taskID, now)
		if err != nil {
			return b.replyActionError(chatID, err)
		}
		if task.Recurring() {
			return b.sendTextWithRemove(chatID, fmt.Sprintf("✅ <b>%s</b> done. Next due %s.",
				escape(task.Name), task.DueAt.Format(dateLayout)))
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("✅ <b>%s</b> done for good.", escape(task.Name)))

	case actionReschedule:
		task, err := b.taskSvc.Reschedule(ctx, req.taskID, now)
		if err != nil {
			return b.replyActionError(chatID, err)
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("📆 <b>%s</b> pushed to %s.",
			escape(task.Name), task.DueAt.Format(dateLayout)))

	case actionDelete:
		task, err := b.taskSvc.Delete(ctx, req.taskID)
		if err != nil {
			return b.replyActionError(chatID, err)
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 <b>%s</b> deleted.", escape(task.Name)))

	case actionReset:
		if err := b.settingsSvc.ResetAll(ctx); err != nil {
			return b.sendTextWithRemove(chatID, fmt.Sprintf("Reset failed: %s", escape(err.Error())))
		}
		return b.sendTextWithRemove(chatID, "🧹 Everything wiped. Start fresh with /addroom and /add.")

	default:
		return nil
	}
}

func (b *Bot) replyActionError(chatID int64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return b.sendTextWithRemove(chatID, "Chore not found or already deleted.")
	}
	if errors.Is(err, service.ErrValidation) {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("🚫 %s", escape(validationMessage(err))))
	}
	return b.sendTextWithRemove(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
}

// ensureUser loads the stored preferences, creating them from the
// Telegram profile on first contact.
func (b *Bot) ensureUser(from *tgbotapi.User) (*prefs.User, error) {
	user, err := b.prefs.Get()
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	created := prefs.NewUser(strings.TrimSpace(from.FirstName))
	if err := b.prefs.Set(created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (b *Bot) reprompt(chatID int64, state *conversationState, text string) error {
	return b.sendWithReplyMarkup(chatID, text, b.stageKeyboard(state))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// stageKeyboard is the default keyboard for free-text stages: cancel,
// plus skip when editing.
func (b *Bot) stageKeyboard(state *conversationState) tgbotapi.ReplyKeyboardMarkup {
	if state.editing() {
		return skipKeyboard()
	}
	return cancelKeyboard()
}

func formatTaskRow(row model.TaskWithLocation, now time.Time) string {
	var b strings.Builder
	icon := iconUpcoming
	status := fmt.Sprintf("due %s", row.DueAt.Format(dateLayout))
	switch {
	case row.IsOverdue(now):
		icon = iconOverdue
		status = fmt.Sprintf("<b>overdue</b> since %s", row.DueAt.Format(dateLayout))
	case row.IsDueToday(now):
		icon = iconDueToday
		status = "<b>due today</b>"
	}
	fmt.Fprintf(&b, "%s <b>#%d</b> %s · %s — %s\n", icon, row.ID, escape(row.Name), escape(row.LocationName), status)
	if row.Recurring() {
		fmt.Fprintf(&b, "   🔁 %s", model.FrequencyLabel(row.RepeatFreqDays))
		if row.PrevCompletedTimes > 0 {
			fmt.Fprintf(&b, " · done %d time(s)", row.PrevCompletedTimes)
		}
		b.WriteByte('\n')
	}
	if row.Motivation != "" {
		fmt.Fprintf(&b, "   💪 %s\n", escape(row.Motivation))
	}
	b.WriteByte('\n')
	return b.String()
}

func draftFromTask(task *model.Task) service.TaskDraft {
	return service.TaskDraft{
		Name:             task.Name,
		Level:            task.Level,
		DurationMins:     task.DurationMins,
		CanBeDoneAdvance: task.CanBeDoneAdvance,
		HasReminders:     task.HasReminders,
		DueAt:            task.DueAt,
		RepeatFreqDays:   task.RepeatFreqDays,
		Motivation:       task.Motivation,
		LocationID:       task.LocationID,
	}
}

func matchLocation(locations []model.Location, input string) (model.Location, bool) {
	input = strings.TrimSpace(input)
	if id, err := strconv.ParseUint(input, 10, 64); err == nil {
		for _, loc := range locations {
			if loc.ID == uint(id) {
				return loc, true
			}
		}
	}
	for _, loc := range locations {
		if strings.EqualFold(loc.Name, input) {
			return loc, true
		}
	}
	return model.Location{}, false
}

// validationMessage strips the sentinel prefix for user display.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
}

func parseIDArgument(msg *tgbotapi.Message) (uint, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	value, err := strconv.ParseUint(args, 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid task id %q", args)
	}
	return uint(value), nil
}

func parseYesNo(text string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(btnYes), "y", "yes":
		return true, true
	case strings.ToLower(btnNo), "n", "no":
		return false, true
	default:
		return false, false
	}
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
	return value == strings.ToLower(btnCancelDialog) || value == "cancel input"
}

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
			tgbotapi.NewKeyboardButton(menuLabelAdd),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelRoutine),
			tgbotapi.NewKeyboardButton(menuLabelHistory),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func kindKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnRepeating),
			tgbotapi.NewKeyboardButton(btnOneTime),
		),
	}
	if editing {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	row := tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnYes),
		tgbotapi.NewKeyboardButton(btnNo),
	)
	if editing {
		row = append(row, tgbotapi.NewKeyboardButton(btnSkip))
	}
	kb := tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func roomsKeyboard(locations []model.Location, editing bool) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(locations); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(locations[i].Name)}
		if i+1 < len(locations) {
			row = append(row, tgbotapi.NewKeyboardButton(locations[i+1].Name))
		}
		rows = append(rows, row)
	}
	if editing {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func escape(s string) string {
	return html.EscapeString(s)
}
