package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const TelegramChannelName = "telegram"

// MessageSender is the part of tgbotapi.BotAPI the channel needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel sends reminders to the owner's linked Telegram chat.
type TelegramChannel struct {
	sender MessageSender
}

func NewTelegramChannel(sender MessageSender) *TelegramChannel {
	return &TelegramChannel{sender: sender}
}

func (c *TelegramChannel) Name() string {
	return TelegramChannelName
}

func (c *TelegramChannel) Deliver(ctx context.Context, msg Message) (Result, error) {
	result := Result{Channel: TelegramChannelName}
	if msg.Recipient.TelegramChatID == nil {
		return result, nil
	}
	chatID := *msg.Recipient.TelegramChatID
	target := strconv.FormatInt(chatID, 10)

	out := tgbotapi.NewMessage(chatID, fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(msg.Title), html.EscapeString(msg.Body)))
	out.ParseMode = tgbotapi.ModeHTML

	done := make(chan error, 1)
	go func() {
		_, err := c.sender.Send(out)
		done <- err
	}()

	select {
	case <-ctx.Done():
		result.Failed = append(result.Failed, target)
		return result, fmt.Errorf("send telegram message: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			result.Failed = append(result.Failed, target)
			return result, fmt.Errorf("send telegram message: %w", err)
		}
	}
	result.Delivered = append(result.Delivered, target)
	return result, nil
}
