package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExpo(url string) *ExpoChannel {
	return newTestExpoWithLogger(url, nil)
}

func newTestExpoWithLogger(url string, logger *slog.Logger) *ExpoChannel {
	return NewExpoChannel(ExpoConfig{
		URL:           url,
		AccessToken:   "secret",
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Logger:        logger,
	})
}

func TestExpoChannel_TicketMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/push", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var batch []expoMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		require.Len(t, batch, 3)
		assert.Equal(t, "Пора повторить", batch[0].Title)
		assert.Equal(t, "default", batch[0].Sound)
		assert.Equal(t, "morning_flashcards", batch[0].Data["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"status":"ok","id":"t1"},
			{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}},
			{"status":"error","message":"too big","details":{"error":"MessageTooBig"}}
		]}`))
	}))
	defer server.Close()

	var logs bytes.Buffer
	channel := newTestExpoWithLogger(server.URL+"/push", slog.New(slog.NewTextHandler(&logs, nil)))
	defer channel.Close()

	res, err := channel.Deliver(context.Background(), Message{
		Recipient: Recipient{OwnerID: "u1", PushTokens: []string{"a", "b", "c"}},
		Title:     "Пора повторить",
		Body:      "3 карточки",
		Data:      map[string]string{"type": "morning_flashcards"},
	})
	require.NoError(t, err)
	assert.Equal(t, ExpoChannelName, res.Channel)
	assert.Equal(t, []string{"a"}, res.Delivered)
	assert.Equal(t, []string{"b"}, res.Rejected)
	assert.Equal(t, []string{"c"}, res.Failed)

	assert.Contains(t, logs.String(), `msg="Expo rejected push"`)
	assert.Contains(t, logs.String(), "channel=expo")
	assert.Contains(t, logs.String(), "error=MessageTooBig")
}

func TestExpoChannel_Batches(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var batch []expoMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		assert.LessOrEqual(t, len(batch), expoBatchSize)

		tickets := make([]expoTicket, len(batch))
		for i := range tickets {
			tickets[i].Status = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(expoResponse{Data: tickets}))
	}))
	defer server.Close()

	tokens := make([]string, 250)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("ExponentPushToken[%d]", i)
	}

	channel := newTestExpo(server.URL)
	defer channel.Close()

	res, err := channel.Deliver(context.Background(), Message{Recipient: Recipient{PushTokens: tokens}})
	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
	assert.Len(t, res.Delivered, 250)
}

func TestExpoChannel_Retries(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantRequests int32
		wantErr      bool
	}{
		{name: "recovers after server error", statuses: []int{503, 200}, wantRequests: 2},
		{name: "retries rate limit", statuses: []int{429, 429, 200}, wantRequests: 3},
		{name: "gives up after attempts", statuses: []int{500, 502, 503}, wantRequests: 3, wantErr: true},
		{name: "client error is not retried", statuses: []int{400}, wantRequests: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := requests.Add(1)
				status := tt.statuses[min(int(n), len(tt.statuses))-1]
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				if status == http.StatusOK {
					_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
					return
				}
				_, _ = w.Write([]byte(`{"errors":[{"code":"X","message":"nope"}]}`))
			}))
			defer server.Close()

			channel := newTestExpo(server.URL)
			defer channel.Close()

			res, err := channel.Deliver(context.Background(), Message{Recipient: Recipient{PushTokens: []string{"tok"}}})
			assert.Equal(t, tt.wantRequests, requests.Load())
			if tt.wantErr {
				var statusErr *expoStatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.statuses[len(tt.statuses)-1], statusErr.code)
				assert.Equal(t, []string{"tok"}, res.Failed)
				assert.Empty(t, res.Rejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"tok"}, res.Delivered)
		})
	}
}

func TestExpoChannel_NoTokens(t *testing.T) {
	channel := newTestExpo("http://127.0.0.1:1")
	defer channel.Close()

	res, err := channel.Deliver(context.Background(), Message{Recipient: Recipient{OwnerID: "u"}})
	require.NoError(t, err)
	assert.False(t, res.Attempted())
}
