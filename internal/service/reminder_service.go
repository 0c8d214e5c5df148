package service

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"srs-planner/internal/model"
	"srs-planner/internal/notify"
	"srs-planner/internal/repository"
	"srs-planner/internal/srs"
)

var periodTitles = map[string]string{
	DueBucketLabel: "Пора повторить",
	"1_day":        "Через день",
	"1_week":       "Через неделю",
	"1_month":      "Через месяц",
	"3_months":     "Через 3 месяца",
	"6_months":     "Через 6 месяцев",
	"12_months":    "Через год",
	"18_months":    "Через 1,5 года",
	"24_months":    "Через 2 года",
	"36_months":    "Через 3 года",
}

// ReminderService builds human-readable texts for reminders and summaries.
type ReminderService struct{}

func NewReminderService() *ReminderService {
	return &ReminderService{}
}

// EveningMessage invites the owner to practise what they studied today.
func (s *ReminderService) EveningMessage(to notify.Recipient, topics []string) notify.Message {
	var body string
	switch {
	case len(topics) == 1:
		body = fmt.Sprintf("Сегодня вы изучали «%s». Самое время закрепить!", topics[0])
	default:
		shown := topics
		if len(shown) > 3 {
			shown = shown[:3]
		}
		body = fmt.Sprintf("Сегодня вы изучали: %s. Самое время закрепить!", strings.Join(shown, ", "))
	}
	return notify.Message{
		Recipient: to,
		Title:     "Время практики!",
		Body:      body,
		Data:      map[string]string{"type": string(model.TriggerEveningPractice)},
	}
}

// MorningMessage tells the owner how many cards are waiting.
func (s *ReminderService) MorningMessage(to notify.Recipient, due int) notify.Message {
	return notify.Message{
		Recipient: to,
		Title:     "Карточки ждут вас",
		Body:      fmt.Sprintf("К повторению %d %s!", due, cardsWord(due)),
		Data: map[string]string{
			"type":      string(model.TriggerMorningFlashcard),
			"due_count": strconv.Itoa(due),
		},
	}
}

// DueSummary renders the due list for chat.
func (s *ReminderService) DueSummary(res DueResult, loc *time.Location) string {
	var builder strings.Builder
	builder.WriteString("📚 <b>Карточки к повторению</b>\n")
	if res.TotalDue == 0 {
		builder.WriteString("— всё повторено, отдыхайте\n")
		return strings.TrimSpace(builder.String())
	}
	builder.WriteString(fmt.Sprintf("Всего: %d\n\n", res.TotalDue))
	for _, item := range res.Items {
		builder.WriteString(formatCard(item, loc))
	}
	if hidden := res.TotalDue - len(res.Items); hidden > 0 {
		builder.WriteString(fmt.Sprintf("\n…и ещё %d %s\n", hidden, cardsWord(hidden)))
	}
	return strings.TrimSpace(builder.String())
}

// TimelineSummary renders the horizon buckets for chat.
func (s *ReminderService) TimelineSummary(res TimelineResult) string {
	var builder strings.Builder
	builder.WriteString("🗓 <b>План повторений</b>\n")
	if len(res.Periods) == 0 {
		builder.WriteString("— карточек пока нет\n")
		return strings.TrimSpace(builder.String())
	}
	builder.WriteString(fmt.Sprintf("🔥 сейчас: %d · ⏳ впереди: %d\n\n", res.TotalDue, res.TotalUpcoming))
	for _, period := range res.Periods {
		title, ok := periodTitles[period.Period]
		if !ok {
			title = period.Period
		}
		builder.WriteString(fmt.Sprintf("• %s: <b>%d</b>\n", title, period.Count))
	}
	return strings.TrimSpace(builder.String())
}

// ReviewSummary confirms a review and shows the next date.
func (s *ReminderService) ReviewSummary(res ReviewResult, loc *time.Location) string {
	return fmt.Sprintf("✅ Следующее повторение через %s\n📆 %s (шаг %d из %d)",
		intervalRu(res.State.Interval),
		res.State.DueAt.In(loc).Format("2006-01-02 15:04"),
		res.State.Step+1, srs.Steps())
}

func formatCard(item repository.ScheduledItem, loc *time.Location) string {
	var sb strings.Builder

	icon := "🟢"
	if item.State.Step == 0 {
		icon = "🆕"
	}
	front := item.ItemID
	if item.Details != nil {
		front = strings.TrimSpace(item.Details.Front)
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(front)))
	if item.Details != nil && strings.TrimSpace(item.Details.DeckName) != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(strings.TrimSpace(item.Details.DeckName))))
	}
	sb.WriteString(fmt.Sprintf("\n   ⏰ с %s · <code>%s</code>", item.State.DueAt.In(loc).Format("2006-01-02 15:04"), item.ItemID))
	sb.WriteByte('\n')
	return sb.String()
}

func intervalRu(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	switch {
	case days < 7:
		return fmt.Sprintf("%d %s", days, pluralRu(days, "день", "дня", "дней"))
	case days < 30:
		weeks := days / 7
		return fmt.Sprintf("%d %s", weeks, pluralRu(weeks, "неделю", "недели", "недель"))
	default:
		months := days / 30
		return fmt.Sprintf("%d %s", months, pluralRu(months, "месяц", "месяца", "месяцев"))
	}
}

func cardsWord(n int) string {
	return pluralRu(n, "карточка", "карточки", "карточек")
}

func pluralRu(n int, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	default:
		return many
	}
}
