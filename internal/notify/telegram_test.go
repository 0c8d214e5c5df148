package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent  []tgbotapi.MessageConfig
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.block != nil {
		<-f.block
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramChannel(t *testing.T) {
	chatID := int64(777)

	t.Run("delivers escaped html", func(t *testing.T) {
		sender := &fakeSender{}
		res, err := NewTelegramChannel(sender).Deliver(context.Background(), Message{
			Recipient: Recipient{TelegramChatID: &chatID},
			Title:     "Время практики!",
			Body:      "Сегодня: <Go>",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"777"}, res.Delivered)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, tgbotapi.ModeHTML, sender.sent[0].ParseMode)
		assert.Equal(t, "<b>Время практики!</b>\nСегодня: &lt;Go&gt;", sender.sent[0].Text)
	})

	t.Run("no chat linked", func(t *testing.T) {
		sender := &fakeSender{}
		res, err := NewTelegramChannel(sender).Deliver(context.Background(), Message{})
		require.NoError(t, err)
		assert.False(t, res.Attempted())
		assert.Empty(t, sender.sent)
	})

	t.Run("send error", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}
		res, err := NewTelegramChannel(sender).Deliver(context.Background(), Message{Recipient: Recipient{TelegramChatID: &chatID}})
		require.Error(t, err)
		assert.Equal(t, []string{"777"}, res.Failed)
	})

	t.Run("respects deadline", func(t *testing.T) {
		sender := &fakeSender{block: make(chan struct{})}
		defer close(sender.block)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		res, err := NewTelegramChannel(sender).Deliver(ctx, Message{Recipient: Recipient{TelegramChatID: &chatID}})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, []string{"777"}, res.Failed)
		assert.Empty(t, res.Rejected)
	})
}
