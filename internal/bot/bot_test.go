package bot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srs-planner/internal/model"
	"srs-planner/internal/repository"
	"srs-planner/internal/service"
	"srs-planner/internal/srs"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type fixture struct {
	bot   *Bot
	api   *fakeAPI
	store *repository.GormItemStore
	logs  *repository.DispatchLogRepository
	prefs *service.PreferenceService
	clock time.Time
}

const userID = int64(42)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewGormItemStore(db)
	decks := repository.NewDeckRepository(db)
	reviews := service.NewReviewService(store, 3, logger)
	queries := service.NewQueryService(store, 10, logger)
	logs := repository.NewDispatchLogRepository(db)
	prefs := service.NewPreferenceService(repository.NewPreferenceRepository(db), repository.NewPushTokenRepository(db), logs, logger)

	f := &fixture{api: &fakeAPI{}, store: store, logs: logs, prefs: prefs, clock: t0}
	f.bot = New(f.api, Services{
		Owners:      repository.NewOwnerRepository(db),
		Cards:       service.NewCardService(decks, reviews),
		Decks:       service.NewDeckService(decks, queries),
		Reviews:     reviews,
		Queries:     queries,
		Preferences: prefs,
		Activity:    service.NewActivityService(repository.NewSessionRepository(db)),
		Texts:       service.NewReminderService(),
	}, logger)
	f.bot.now = func() time.Time { return f.clock }
	return f
}

func message(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Ann", UserName: "ann"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	}
	return msg
}

func (f *fixture) say(t *testing.T, text string) string {
	t.Helper()
	require.NoError(t, f.bot.handleMessage(context.Background(), message(text)))
	return f.api.last(t).Text
}

func (f *fixture) press(t *testing.T, data string) {
	t.Helper()
	require.NoError(t, f.bot.handleCallback(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID, FirstName: "Ann"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID, Type: "private"}},
		Data:    data,
	}))
}

func ownerID() string {
	return repository.TelegramOwnerID(userID)
}

func inlineData(t *testing.T, msg tgbotapi.MessageConfig) []string {
	t.Helper()
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "expected inline keyboard, got %T", msg.ReplyMarkup)
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			require.NotNil(t, btn.CallbackData)
			out = append(out, *btn.CallbackData)
		}
	}
	return out
}

func TestStartRegistersOwner(t *testing.T) {
	f := newFixture(t)

	text := f.say(t, "/start")
	assert.Contains(t, text, "Привет, Ann!")
	assert.Equal(t, tgbotapi.ModeHTML, f.api.last(t).ParseMode)

	pref, err := f.prefs.Get(context.Background(), ownerID())
	require.NoError(t, err)
	assert.Equal(t, "UTC", pref.Timezone)
}

func TestAddCardInline(t *testing.T) {
	f := newFixture(t)

	text := f.say(t, "/add hola | hello | Spanish")
	assert.Contains(t, text, "Карточка сохранена")
	assert.Contains(t, text, "<b>Колода:</b> Spanish")
	assert.Contains(t, text, "2025-03-10 09:00")

	n, err := f.store.CountDueBefore(context.Background(), ownerID(), t0, repository.ItemFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	text = f.say(t, "/add only front")
	assert.Contains(t, text, "Формат")
}

func TestAddCardConversation(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.say(t, "/add"), "Шаг 1")
	assert.Contains(t, f.say(t, "gato"), "Шаг 2")
	assert.Contains(t, f.say(t, "cat"), "колоду")
	text := f.say(t, btnSkip)
	assert.Contains(t, text, "Карточка сохранена")
	assert.NotContains(t, text, "Колода")
	assert.False(t, f.bot.hasConversation(userID))

	f.say(t, "/add")
	assert.Contains(t, f.say(t, btnCancelDialog), "отменён")
	assert.False(t, f.bot.hasConversation(userID))
}

func TestReviewFlow(t *testing.T) {
	f := newFixture(t)
	f.say(t, "/add first | один")
	f.clock = t0.Add(time.Minute)
	f.say(t, "/add second | два")
	f.clock = t0.Add(time.Hour)

	text := f.say(t, "/due")
	assert.Contains(t, text, "Всего: 2")
	assert.Equal(t, []string{cbNext}, inlineData(t, f.api.last(t)))

	f.press(t, cbNext)
	card := f.api.last(t)
	assert.Contains(t, card.Text, "first")
	assert.NotContains(t, card.Text, "один")
	data := inlineData(t, card)
	require.Len(t, data, 1)
	require.True(t, strings.HasPrefix(data[0], cbAnswerPrefix))
	firstID := strings.TrimPrefix(data[0], cbAnswerPrefix)

	f.press(t, data[0])
	revealed := f.api.last(t)
	assert.Contains(t, revealed.Text, "один")
	assert.Equal(t, []string{"r:forgot:" + firstID, "r:hard:" + firstID, "r:good:" + firstID}, inlineData(t, revealed))

	f.api.reset()
	f.press(t, "r:good:"+firstID)
	texts := f.api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "через 1 неделю")
	assert.Contains(t, texts[1], "second")

	item, err := f.store.Get(context.Background(), firstID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.State.Step)
	assert.Equal(t, 1, item.State.ReviewCount)

	assert.Len(t, f.api.requests, 3, "every callback is acknowledged")
}

func TestReviewCommand(t *testing.T) {
	f := newFixture(t)
	f.say(t, "/add q | a")
	f.clock = t0.Add(time.Hour)

	f.say(t, "/review")
	id := strings.TrimPrefix(inlineData(t, f.api.last(t))[0], cbAnswerPrefix)

	assert.Contains(t, f.say(t, "/review "+id+" nonsense"), "good, hard, forgot")
	assert.Contains(t, f.say(t, "/review missing good"), "не найдена")

	f.api.reset()
	f.say(t, "/review "+id+" forgot")
	texts := f.api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "через 1 день")
	assert.Contains(t, texts[1], "Все карточки повторены")
}

func TestOtherOwnersCardsAreHidden(t *testing.T) {
	f := newFixture(t)
	_, err := service.NewReviewService(f.store, 1, nil).OnItemCreated(context.Background(),
		service.NewItem{ItemID: "foreign", OwnerID: "app:1", Front: "secret"}, t0)
	require.NoError(t, err)

	assert.Contains(t, f.say(t, "/review foreign"), "не найдена")
	f.press(t, "r:good:foreign")
	assert.Contains(t, f.api.last(t).Text, "не найдена")

	item, err := f.store.Get(context.Background(), "foreign")
	require.NoError(t, err)
	assert.Zero(t, item.State.ReviewCount)
}

func TestMoveCard(t *testing.T) {
	f := newFixture(t)
	f.say(t, "/add q | a")
	f.say(t, "/review")
	id := strings.TrimPrefix(inlineData(t, f.api.last(t))[0], cbAnswerPrefix)

	assert.Contains(t, f.say(t, "/move "+id+" someday"), "Формат")
	assert.Contains(t, f.say(t, "/move "+id+" 1_week"), "2025-03-17 09:00")

	item, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, item.State.Step)
	assert.Zero(t, item.State.ReviewCount)
}

func TestTimelineAndDecks(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.say(t, "/timeline"), "карточек пока нет")
	assert.Contains(t, f.say(t, "/decks"), "Колод пока нет")

	f.say(t, "/add a | 1 | Alpha")
	f.say(t, "/add b | 2 | Beta")

	text := f.say(t, "/timeline")
	assert.Contains(t, text, "Пора повторить: <b>2</b>")

	assert.Contains(t, f.say(t, "/timeline Gamma"), "Колода не найдена")
	assert.Contains(t, f.say(t, "/due Alpha"), "Всего: 1")

	text = f.say(t, "/decks")
	assert.Contains(t, text, "Alpha — к повторению 1 из 1")
	assert.Contains(t, text, "Beta — к повторению 1 из 1")
}

func TestTimezoneAndNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Contains(t, f.say(t, "/tz"), "UTC")
	assert.Contains(t, f.say(t, "/tz Mars/Olympus_Mons"), "Не знаю такой часовой пояс")
	assert.Contains(t, f.say(t, "/tz Europe/Berlin"), "Europe/Berlin")

	assert.Contains(t, f.say(t, "/notify evening off"), "Вечернее напоминание выключено")
	assert.Contains(t, f.say(t, "/notify утро выкл"), "Утреннее напоминание выключено")
	assert.Contains(t, f.say(t, "/notify weekly on"), "Формат")

	pref, err := f.prefs.Get(ctx, ownerID())
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", pref.Timezone)
	assert.False(t, pref.EveningEnabled)
	assert.False(t, pref.MorningEnabled)

	_, err = f.logs.Append(ctx, model.DispatchLog{OwnerID: ownerID(), Kind: model.TriggerMorningFlashcard, Status: model.DispatchSent, SentAt: t0.Add(-time.Hour)})
	require.NoError(t, err)

	text := f.say(t, "/notify")
	assert.Contains(t, text, "вечером: выключено\n")
	assert.Contains(t, text, "утром: выключено (последнее 2025-03-10 09:00, доставлено)")

	assert.Contains(t, f.say(t, "/add q | a"), "2025-03-10 10:00", "dates are shown in the owner's zone")
}

func TestStudiedRecordsSession(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.say(t, "/studied"), "Укажи тему")
	assert.Contains(t, f.say(t, "/studied Verbs"), "«Verbs»")

	topics, err := f.bot.svc.Activity.TopicsToday(context.Background(), ownerID(), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Verbs"}, topics)
}

func TestUnknownInput(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.say(t, "/unknown"), "не поддерживается")
	assert.Contains(t, f.say(t, "hello"), "не понял")
	assert.Contains(t, f.say(t, menuLabelHelp), "Подсказки")
}

func TestParseHelpers(t *testing.T) {
	input, ok := parseCardInput(" a | b | deck ")
	assert.True(t, ok)
	assert.Equal(t, service.CardInput{Front: "a", Back: "b", Deck: "deck"}, input)

	_, ok = parseCardInput("a | | deck")
	assert.False(t, ok)
	_, ok = parseCardInput("a | b | c | d")
	assert.False(t, ok)

	outcome, id, err := parseRateData("r:hard:abc")
	require.NoError(t, err)
	assert.Equal(t, srs.Hard, outcome)
	assert.Equal(t, "abc", id)

	_, _, err = parseRateData("r:good")
	assert.Error(t, err)
	_, _, err = parseRateData("r:maybe:abc")
	assert.ErrorIs(t, err, srs.ErrInvalidOutcome)

	kind, ok := parseTrigger("evening")
	assert.True(t, ok)
	assert.Equal(t, model.TriggerEveningPractice, kind)

	assert.True(t, isDelayLabel("now"))
	assert.True(t, isDelayLabel("36_months"))
	assert.False(t, isDelayLabel("2_days"))
}
