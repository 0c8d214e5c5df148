package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_notify "srs-planner/internal/mocks/notify"
	"srs-planner/internal/notify"
)

func TestFanoutDeliver(t *testing.T) {
	chatID := int64(42)
	msg := notify.Message{
		Recipient: notify.Recipient{OwnerID: "tg:42", PushTokens: []string{"ExponentPushToken[a]"}, TelegramChatID: &chatID},
		Title:     "Карточки ждут",
		Body:      "5 карточек к повторению",
	}

	tests := []struct {
		name          string
		pushResult    notify.Result
		pushErr       error
		chatResult    notify.Result
		chatErr       error
		wantDelivered bool
		wantAttempted int
		wantErr       bool
		wantRejected  []string
	}{
		{
			name:          "one channel succeeds",
			pushResult:    notify.Result{Channel: "expo", Failed: []string{"ExponentPushToken[a]"}},
			pushErr:       errors.New("expo response error 503"),
			chatResult:    notify.Result{Channel: "telegram", Delivered: []string{"42"}},
			wantDelivered: true,
			wantAttempted: 2,
		},
		{
			name:          "every channel fails",
			pushResult:    notify.Result{Channel: "expo", Rejected: []string{"ExponentPushToken[a]"}},
			chatResult:    notify.Result{Channel: "telegram", Failed: []string{"42"}},
			chatErr:       context.DeadlineExceeded,
			wantAttempted: 2,
			wantErr:       true,
			wantRejected:  []string{"ExponentPushToken[a]"},
		},
		{
			name:          "nothing to send to",
			pushResult:    notify.Result{Channel: "expo"},
			chatResult:    notify.Result{Channel: "telegram"},
			wantAttempted: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			push := mock_notify.NewMockChannel(ctrl)
			chat := mock_notify.NewMockChannel(ctrl)
			push.EXPECT().Name().Return("expo").AnyTimes()
			chat.EXPECT().Name().Return("telegram").AnyTimes()
			push.EXPECT().Deliver(gomock.Any(), msg).Return(tt.pushResult, tt.pushErr)
			chat.EXPECT().Deliver(gomock.Any(), msg).Return(tt.chatResult, tt.chatErr)

			fanout := notify.NewFanout(push, chat)
			assert.Equal(t, "expo,telegram", fanout.Names())

			d := fanout.Deliver(context.Background(), msg)
			assert.Equal(t, tt.wantDelivered, d.Delivered)
			assert.Equal(t, tt.wantAttempted, d.Attempted)
			assert.Equal(t, tt.wantRejected, d.Rejected("expo"))
			if tt.wantErr {
				require.ErrorIs(t, d.Err(), notify.ErrDeliveryFailure)
				assert.ErrorIs(t, d.Err(), context.DeadlineExceeded)
			} else {
				assert.NoError(t, d.Err())
			}
		})
	}
}

func TestRecipientEmpty(t *testing.T) {
	chatID := int64(1)
	assert.True(t, notify.Recipient{OwnerID: "x"}.Empty())
	assert.False(t, notify.Recipient{TelegramChatID: &chatID}.Empty())
	assert.False(t, notify.Recipient{PushTokens: []string{"t"}}.Empty())
}
