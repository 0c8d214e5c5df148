package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"srs-planner/internal/model"
	"srs-planner/internal/repository"
	"srs-planner/internal/service"
	"srs-planner/internal/srs"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageFront
	stageBack
	stageDeck
)

const (
	cbAnswerPrefix = "a:"
	cbRatePrefix   = "r:"
	cbNext         = "next"
)

const (
	btnSkip          = "⏭️ Пропустить"
	btnCancelDialog  = "⏪ Отменить ввод"
	btnShowAnswer    = "👀 Показать ответ"
	btnStartReview   = "▶️ Начать повторение"
	btnForgot        = "❌ Забыл"
	btnHard          = "😐 Трудно"
	btnGood          = "✅ Помню"
	menuLabelReview  = "📚 Повторить"
	menuLabelNewCard = "➕ Карточка"
	menuLabelPlan    = "🗓 План"
	menuLabelHelp    = "ℹ️ Помощь"
	timeLayout       = "2006-01-02 15:04"
)

type conversationState struct {
	stage conversationStage
	input service.CardInput
}

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Services bundles everything the chat handlers call into.
type Services struct {
	Owners      *repository.OwnerRepository
	Cards       *service.CardService
	Decks       *service.DeckService
	Reviews     *service.ReviewService
	Queries     *service.QueryService
	Preferences *service.PreferenceService
	Activity    *service.ActivityService
	Texts       *service.ReminderService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           API
	svc           Services
	logger        *slog.Logger
	now           func() time.Time
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(api API, svc Services, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:           api,
		svc:           svc,
		logger:        logger.With("component", "bot"),
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Error("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Error("handle message", "error", err)
			}
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
		return b.sendText(msg.Chat.ID, "⏪ Ввод карточки отменён.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.logger.Debug("command", "user", msg.From.ID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /add, чтобы добавить карточку, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "due":
		return b.handleDue(ctx, msg)
	case "review":
		return b.handleReview(ctx, msg)
	case "timeline":
		return b.handleTimeline(ctx, msg)
	case "decks":
		return b.handleDecks(ctx, msg)
	case "move":
		return b.handleMove(ctx, msg)
	case "tz":
		return b.handleTimezone(ctx, msg)
	case "notify":
		return b.handleNotify(ctx, msg)
	case "studied":
		return b.handleStudied(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод карточки отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, _, err := b.ensureOwner(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я помогу запоминать карточки по интервальной лестнице.</b>\n\n"+
			"Новая карточка сначала ждёт повторения сразу, потом через день, неделю, месяц и дальше до трёх лет. "+
			"Ошибся — карточка вернётся в начало.\n\n"+
			"• /add — добавить карточку\n"+
			"• /review — повторить карточки\n"+
			"• /help — все команды",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /add — добавить карточку пошагово\n" +
		"• /add вопрос | ответ | колода — добавить одной строкой\n" +
		"• /due [колода] — что пора повторить\n" +
		"• /review — повторять по одной карточке\n" +
		"• /review &lt;id&gt; good|hard|forgot — оценить карточку\n" +
		"• /move &lt;id&gt; now|1_day|1_week|… — перенести карточку\n" +
		"• /timeline [колода] — план повторений\n" +
		"• /decks — колоды и сколько в них ждёт\n" +
		"• /studied &lt;тема&gt; — отметить, что изучал сегодня\n" +
		"• /tz Europe/Moscow — часовой пояс для напоминаний\n" +
		"• /notify evening|morning on|off — напоминания\n" +
		"• /cancel — отменить текущий ввод"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		if _, _, err := b.ensureOwner(ctx, msg.From); err != nil {
			return err
		}
		b.setConversation(msg.From.ID, &conversationState{stage: stageFront})
		return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём карточку.\n<b>Шаг 1:</b> что будет на лицевой стороне?", cancelKeyboard())
	}

	input, ok := parseCardInput(args)
	if !ok {
		return b.sendText(msg.Chat.ID, "Формат: <code>/add вопрос | ответ | колода</code> (колоду можно не указывать).")
	}
	return b.finishCardCreation(ctx, msg.From, input, msg.Chat.ID)
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageFront:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Лицевая сторона не может быть пустой.", cancelKeyboard())
		}
		state.input.Front = text
		state.stage = stageBack
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Шаг 2:</b> что на обороте?", cancelKeyboard())
	case stageBack:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Оборот не может быть пустым.", cancelKeyboard())
		}
		state.input.Back = text
		state.stage = stageDeck
		return b.sendWithReplyMarkup(msg.Chat.ID, "🗂 В какую колоду положить? (или «Пропустить»)", skipKeyboard())
	case stageDeck:
		if !isSkipInput(text) {
			state.input.Deck = text
		}
		err := b.finishCardCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /add.")
	}
}

func (b *Bot) finishCardCreation(ctx context.Context, from *tgbotapi.User, input service.CardInput, chatID int64) error {
	ownerID, loc, err := b.ensureOwner(ctx, from)
	if err != nil {
		return err
	}

	card, err := b.svc.Cards.CreateCard(ctx, ownerID, input, b.now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить карточку: %s", errorText(err)))
	}

	b.logger.Info("card created", "owner", ownerID, "card", card.ID, "deck", card.DeckID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Карточка сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Вопрос:</b> %s\n", escape(card.Front)))
	summary.WriteString(fmt.Sprintf("• <b>Ответ:</b> %s\n", escape(card.Back)))
	if card.DeckName != "" {
		summary.WriteString(fmt.Sprintf("• <b>Колода:</b> %s\n", escape(card.DeckName)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Повторить:</b> %s\n", card.State.DueAt.In(loc).Format(timeLayout)))
	summary.WriteString(fmt.Sprintf("• <code>%s</code>", card.ID))
	return b.sendText(chatID, summary.String())
}

func (b *Bot) handleDue(ctx context.Context, msg *tgbotapi.Message) error {
	ownerID, loc, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}
	filter, ok, err := b.deckFilter(ctx, msg.Chat.ID, ownerID, msg.CommandArguments())
	if !ok {
		return err
	}
	filter.WithDetails = true

	res, err := b.svc.Queries.DueAt(ctx, ownerID, b.now(), 0, filter)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить карточки: %s", errorText(err)))
	}
	text := b.svc.Texts.DueSummary(res, loc)
	if res.TotalDue == 0 {
		return b.sendText(msg.Chat.ID, text)
	}
	return b.sendWithReplyMarkup(msg.Chat.ID, text, tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnStartReview, cbNext)),
	))
}

func (b *Bot) handleReview(ctx context.Context, msg *tgbotapi.Message) error {
	ownerID, loc, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}

	args := strings.Fields(msg.CommandArguments())
	switch len(args) {
	case 0:
		return b.sendNextCard(ctx, msg.Chat.ID, ownerID)
	case 1:
		item, err := b.svc.Queries.Item(ctx, args[0], ownerID)
		if err != nil {
			return b.sendText(msg.Chat.ID, errorText(err))
		}
		return b.showCard(msg.Chat.ID, item, false)
	default:
		outcome, err := srs.ParseOutcome(args[1])
		if err != nil {
			return b.sendText(msg.Chat.ID, errorText(err))
		}
		return b.applyReview(ctx, msg.Chat.ID, ownerID, loc, args[0], outcome)
	}
}

func (b *Bot) applyReview(ctx context.Context, chatID int64, ownerID string, loc *time.Location, itemID string, outcome srs.Outcome) error {
	res, err := b.svc.Reviews.OnReview(ctx, itemID, ownerID, outcome, b.now())
	if err != nil {
		return b.sendText(chatID, errorText(err))
	}
	b.logger.Info("card reviewed", "owner", ownerID, "card", itemID, "outcome", outcome, "step", res.State.Step)

	if err := b.sendText(chatID, b.svc.Texts.ReviewSummary(res, loc)); err != nil {
		return err
	}
	return b.sendNextCard(ctx, chatID, ownerID)
}

func (b *Bot) sendNextCard(ctx context.Context, chatID int64, ownerID string) error {
	res, err := b.svc.Queries.DueAt(ctx, ownerID, b.now(), 1, repository.ItemFilter{WithDetails: true})
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить карточки: %s", errorText(err)))
	}
	if len(res.Items) == 0 {
		return b.sendText(chatID, "🎉 Все карточки повторены. План на будущее: /timeline")
	}
	return b.showCard(chatID, res.Items[0], false)
}

func (b *Bot) showCard(chatID int64, item repository.ScheduledItem, reveal bool) error {
	front, back, deck := item.ItemID, "", ""
	if item.Details != nil {
		front, back, deck = item.Details.Front, item.Details.Back, item.Details.DeckName
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("🃏 <b>%s</b>", escape(front)))
	if deck != "" {
		text.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(deck)))
	}
	if !reveal {
		return b.sendWithReplyMarkup(chatID, text.String(), tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnShowAnswer, cbAnswerPrefix+item.ItemID)),
		))
	}
	text.WriteString(fmt.Sprintf("\n\n%s", escape(back)))
	return b.sendWithReplyMarkup(chatID, text.String(), ratingKeyboard(item.ItemID))
}

func (b *Bot) handleTimeline(ctx context.Context, msg *tgbotapi.Message) error {
	ownerID, _, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}
	filter, ok, err := b.deckFilter(ctx, msg.Chat.ID, ownerID, msg.CommandArguments())
	if !ok {
		return err
	}

	res, err := b.svc.Queries.TimelineAt(ctx, ownerID, b.now(), filter)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось построить план: %s", errorText(err)))
	}
	return b.sendText(msg.Chat.ID, b.svc.Texts.TimelineSummary(res))
}

func (b *Bot) handleDecks(ctx context.Context, msg *tgbotapi.Message) error {
	ownerID, _, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}

	decks, err := b.svc.Decks.List(ctx, ownerID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить колоды: %s", errorText(err)))
	}
	if len(decks) == 0 {
		return b.sendText(msg.Chat.ID, "Колод пока нет. Добавь карточку: <code>/add вопрос | ответ | колода</code>")
	}

	var builder strings.Builder
	builder.WriteString("🗂 <b>Колоды</b>\n")
	for _, d := range decks {
		builder.WriteString(fmt.Sprintf("• %s — к повторению %d из %d\n", escape(d.Deck.Name), d.Due, d.Total))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleMove(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 || !isDelayLabel(args[1]) {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Формат: <code>/move id срок</code>, срок: %s", strings.Join(srs.DelayLabels(), ", ")))
	}

	ownerID, loc, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}
	res, err := b.svc.Reviews.Reschedule(ctx, args[0], ownerID, args[1], b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📌 Карточка перенесена, следующее повторение %s", res.State.DueAt.In(loc).Format(timeLayout)))
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	ownerID, loc, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🌍 Часовой пояс: <b>%s</b>\nИзменить: <code>/tz Europe/Moscow</code>", escape(loc.String())))
	}

	pref, err := b.svc.Preferences.Update(ctx, ownerID, repository.PreferenceUpdate{Timezone: &name})
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🌍 Часовой пояс обновлён: <b>%s</b>", escape(pref.Timezone)))
}

func (b *Bot) handleNotify(ctx context.Context, msg *tgbotapi.Message) error {
	ownerID, loc, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}

	args := strings.Fields(strings.ToLower(msg.CommandArguments()))
	if len(args) == 0 {
		status, err := b.svc.Preferences.Status(ctx, ownerID)
		if err != nil {
			return b.sendText(msg.Chat.ID, errorText(err))
		}
		return b.sendText(msg.Chat.ID, notifyStatusText(status, loc))
	}

	kind, kindOK := parseTrigger(args[0])
	enabled, switchOK := false, false
	if len(args) == 2 {
		enabled, switchOK = parseSwitch(args[1])
	}
	if !kindOK || !switchOK {
		return b.sendText(msg.Chat.ID, "Формат: <code>/notify evening|morning on|off</code>")
	}

	if _, err := b.svc.Preferences.SetTrigger(ctx, ownerID, kind, enabled); err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	title := "Утреннее"
	if kind == model.TriggerEveningPractice {
		title = "Вечернее"
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 %s напоминание %s.", title, onOff(enabled)))
}

func (b *Bot) handleStudied(ctx context.Context, msg *tgbotapi.Message) error {
	topic := strings.TrimSpace(msg.CommandArguments())
	if topic == "" {
		return b.sendText(msg.Chat.ID, "Укажи тему: <code>/studied Неправильные глаголы</code>")
	}

	ownerID, _, err := b.ensureOwner(ctx, msg.From)
	if err != nil {
		return err
	}
	if _, err := b.svc.Activity.RecordSession(ctx, ownerID, topic, b.now()); err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📝 Записал: «%s». Вечером напомню закрепить.", escape(topic)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", "error", err)
	}

	ownerID, loc, err := b.ensureOwner(ctx, cb.From)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case data == cbNext:
		return b.sendNextCard(ctx, chatID, ownerID)
	case strings.HasPrefix(data, cbAnswerPrefix):
		item, err := b.svc.Queries.Item(ctx, strings.TrimPrefix(data, cbAnswerPrefix), ownerID)
		if err != nil {
			return b.sendText(chatID, errorText(err))
		}
		return b.showCard(chatID, item, true)
	case strings.HasPrefix(data, cbRatePrefix):
		outcome, itemID, err := parseRateData(data)
		if err != nil {
			b.logger.Warn("bad rate callback", "data", data, "error", err)
			return nil
		}
		return b.applyReview(ctx, chatID, ownerID, loc, itemID, outcome)
	default:
		return nil
	}
}

// deckFilter resolves an optional deck name. ok is false when a reply has
// already been sent.
func (b *Bot) deckFilter(ctx context.Context, chatID int64, ownerID, name string) (repository.ItemFilter, bool, error) {
	filter, err := b.svc.Decks.Filter(ctx, ownerID, strings.TrimSpace(name))
	if errors.Is(err, repository.ErrNotFound) {
		return filter, false, b.sendText(chatID, "Колода не найдена. Список колод: /decks")
	}
	if err != nil {
		return filter, false, b.sendText(chatID, errorText(err))
	}
	return filter, true, nil
}

// ensureOwner registers the Telegram user and returns its owner id and zone.
func (b *Bot) ensureOwner(ctx context.Context, from *tgbotapi.User) (string, *time.Location, error) {
	owner, err := b.svc.Owners.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.UserName)
	if err != nil {
		return "", nil, err
	}
	pref, err := b.svc.Preferences.Get(ctx, owner.ID)
	if err != nil {
		return "", nil, err
	}
	loc, err := service.LoadTimezone(pref.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return owner.ID, loc, nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
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

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelReview):
		ownerID, _, err := b.ensureOwner(ctx, msg.From)
		if err != nil {
			return true, err
		}
		return true, b.sendNextCard(ctx, msg.Chat.ID, ownerID)
	case strings.ToLower(menuLabelNewCard):
		b.setConversation(msg.From.ID, &conversationState{stage: stageFront})
		return true, b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём карточку.\n<b>Шаг 1:</b> что будет на лицевой стороне?", cancelKeyboard())
	case strings.ToLower(menuLabelPlan):
		return true, b.handleTimeline(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// parseCardInput splits "front | back | deck".
func parseCardInput(args string) (service.CardInput, bool) {
	parts := strings.Split(args, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return service.CardInput{}, false
	}
	input := service.CardInput{
		Front: strings.TrimSpace(parts[0]),
		Back:  strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		input.Deck = strings.TrimSpace(parts[2])
	}
	if input.Front == "" || input.Back == "" {
		return service.CardInput{}, false
	}
	return input, true
}

// parseRateData reads "r:<outcome>:<item id>".
func parseRateData(data string) (srs.Outcome, string, error) {
	rest := strings.TrimPrefix(data, cbRatePrefix)
	raw, itemID, found := strings.Cut(rest, ":")
	if !found || itemID == "" {
		return 0, "", fmt.Errorf("malformed rate data %q", data)
	}
	outcome, err := srs.ParseOutcome(raw)
	if err != nil {
		return 0, "", err
	}
	return outcome, itemID, nil
}

func parseTrigger(value string) (model.TriggerKind, bool) {
	switch value {
	case "evening", "вечер":
		return model.TriggerEveningPractice, true
	case "morning", "утро":
		return model.TriggerMorningFlashcard, true
	default:
		return "", false
	}
}

func parseSwitch(value string) (bool, bool) {
	switch value {
	case "on", "вкл":
		return true, true
	case "off", "выкл":
		return false, true
	default:
		return false, false
	}
}

func isDelayLabel(value string) bool {
	for _, label := range srs.DelayLabels() {
		if label == value {
			return true
		}
	}
	return false
}

func notifyStatusText(status service.NotificationStatus, loc *time.Location) string {
	var builder strings.Builder
	builder.WriteString("🔔 <b>Напоминания</b>\n")
	for _, ts := range status.Triggers {
		label := "утром"
		if ts.Kind == model.TriggerEveningPractice {
			label = "вечером"
		}
		builder.WriteString(fmt.Sprintf("• %s: %s", label, onOff(ts.Enabled)))
		if ts.Last != nil {
			outcome := "доставлено"
			if ts.Last.Status != model.DispatchSent {
				outcome = "не доставлено"
			}
			builder.WriteString(fmt.Sprintf(" (последнее %s, %s)", ts.Last.SentAt.In(loc).Format(timeLayout), outcome))
		}
		builder.WriteString("\n")
	}
	builder.WriteString("Изменить: <code>/notify evening off</code>")
	return builder.String()
}

func onOff(enabled bool) string {
	if enabled {
		return "включено"
	}
	return "выключено"
}

// errorText turns a service error into a reply.
func errorText(err error) string {
	switch service.ErrorKind(err) {
	case "not_found":
		return "Карточка не найдена."
	case "invalid_outcome":
		return "Оценка должна быть одной из: good, hard, forgot."
	case "invalid_timezone":
		return "Не знаю такой часовой пояс. Пример: <code>/tz Europe/Moscow</code>"
	case "invalid_input":
		return "Нужны и вопрос, и ответ."
	case "concurrent_modification":
		return "Карточку как раз обновили, попробуй ещё раз."
	default:
		return escape(err.Error())
	}
}

func isSkipInput(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == strings.ToLower(btnSkip) || lower == "пропустить" || lower == "-"
}

func isCancelDialogInput(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == strings.ToLower(btnCancelDialog) || lower == "отмена"
}

func escape(s string) string {
	return html.EscapeString(s)
}
