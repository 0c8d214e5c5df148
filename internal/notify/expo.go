package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"resty.dev/v3"
)

const (
	ExpoChannelName = "expo"

	// DefaultExpoURL is the Expo push endpoint.
	DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

	expoBatchSize           = 100
	expoDeviceNotRegistered = "DeviceNotRegistered"
)

type ExpoConfig struct {
	URL           string
	AccessToken   string
	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	Logger        *slog.Logger
}

// ExpoChannel sends push notifications through the Expo push API.
type ExpoChannel struct {
	httpClient *resty.Client
	url        string
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewExpoChannel(cfg ExpoConfig) *ExpoChannel {
	client := resty.New()
	client.SetHeader("Accept", "application/json")
	client.SetHeader("Content-Type", "application/json")
	if cfg.AccessToken != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.AccessToken)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	url := cfg.URL
	if url == "" {
		url = DefaultExpoURL
	}
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ExpoChannel{
		httpClient: client,
		url:        url,
		attempts:   attempts,
		retryDelay: delay,
		logger:     logger.With("channel", ExpoChannelName),
	}
}

func (c *ExpoChannel) Close() error {
	return c.httpClient.Close()
}

func (c *ExpoChannel) Name() string {
	return ExpoChannelName
}

type expoMessage struct {
	To    string            `json:"to"`
	Sound string            `json:"sound,omitempty"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoStatusError struct {
	code int
	body string
}

func (e *expoStatusError) Error() string {
	return fmt.Sprintf("expo response error %d: %s", e.code, e.body)
}

// Deliver pushes msg to every token, at most 100 per request. A failed batch
// does not stop the remaining ones.
func (c *ExpoChannel) Deliver(ctx context.Context, msg Message) (Result, error) {
	result := Result{Channel: ExpoChannelName}
	tokens := msg.Recipient.PushTokens
	var errs []error

	for start := 0; start < len(tokens); start += expoBatchSize {
		end := min(start+expoBatchSize, len(tokens))
		batch := make([]expoMessage, 0, end-start)
		for _, token := range tokens[start:end] {
			batch = append(batch, expoMessage{
				To:    token,
				Sound: "default",
				Title: msg.Title,
				Body:  msg.Body,
				Data:  msg.Data,
			})
		}

		tickets, err := c.send(ctx, batch)
		if err != nil {
			c.logger.Error("Expo push request failed",
				"owner", msg.Recipient.OwnerID,
				"tokens", len(batch),
				"error", err)
			result.Failed = append(result.Failed, tokens[start:end]...)
			errs = append(errs, err)
			continue
		}

		for i, m := range batch {
			if i >= len(tickets) {
				result.Failed = append(result.Failed, m.To)
				continue
			}
			ticket := tickets[i]
			switch {
			case ticket.Status == "ok":
				result.Delivered = append(result.Delivered, m.To)
			case ticket.Details.Error == expoDeviceNotRegistered:
				result.Rejected = append(result.Rejected, m.To)
			default:
				c.logger.Warn("Expo rejected push",
					"owner", msg.Recipient.OwnerID,
					"error", ticket.Details.Error,
					"message", ticket.Message)
				result.Failed = append(result.Failed, m.To)
			}
		}
	}

	return result, errors.Join(errs...)
}

func (c *ExpoChannel) send(ctx context.Context, batch []expoMessage) ([]expoTicket, error) {
	var tickets []expoTicket
	err := retry.Do(
		func() error {
			var body expoResponse
			response, err := c.httpClient.R().
				SetContext(ctx).
				SetBody(batch).
				SetResult(&body).
				Post(c.url)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if response.IsError() {
				statusErr := &expoStatusError{code: response.StatusCode(), body: response.String()}
				if statusErr.code >= 500 || statusErr.code == 429 {
					return statusErr
				}
				return retry.Unrecoverable(statusErr)
			}
			tickets = body.Data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
