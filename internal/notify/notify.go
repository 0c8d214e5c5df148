// Package notify delivers reminder messages to owners over push and chat
// channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDeliveryFailure is returned when no channel could deliver a message.
var ErrDeliveryFailure = errors.New("notify: delivery failed")

// Recipient lists every address an owner can be reached at.
type Recipient struct {
	OwnerID        string
	PushTokens     []string
	TelegramChatID *int64
}

// Empty reports whether the recipient has no address at all.
func (r Recipient) Empty() bool {
	return len(r.PushTokens) == 0 && r.TelegramChatID == nil
}

type Message struct {
	Recipient Recipient
	Title     string
	Body      string
	Data      map[string]string
}

// Result describes what a channel did with one message. The slices hold
// channel specific target ids (push tokens, chat ids). Rejected targets were
// refused permanently by the provider.
type Result struct {
	Channel   string
	Delivered []string
	Failed    []string
	Rejected  []string
}

// Attempted reports whether the channel had anything to send to.
func (r Result) Attempted() bool {
	return len(r.Delivered)+len(r.Failed)+len(r.Rejected) > 0
}

//go:generate mockgen -source=notify.go -destination=../mocks/notify/mock_notify.go -package=mock_notify

// Channel is a delivery transport. A channel that has no address for the
// recipient returns an empty Result and no error.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) (Result, error)
}

// Delivery aggregates the results of every channel for one message.
type Delivery struct {
	Results   []Result
	Attempted int
	Delivered bool
	Errors    []error
}

// Rejected returns the targets refused by the given channel.
func (d Delivery) Rejected(channel string) []string {
	var out []string
	for _, r := range d.Results {
		if r.Channel == channel {
			out = append(out, r.Rejected...)
		}
	}
	return out
}

// Err describes why nothing was delivered. It is nil when at least one
// channel succeeded or when no channel had an address to try.
func (d Delivery) Err() error {
	if d.Delivered || d.Attempted == 0 {
		return nil
	}
	if len(d.Errors) == 0 {
		return fmt.Errorf("%w: all targets failed", ErrDeliveryFailure)
	}
	return fmt.Errorf("%w: %w", ErrDeliveryFailure, errors.Join(d.Errors...))
}

// Fanout sends a message through every configured channel.
type Fanout struct {
	channels []Channel
}

func NewFanout(channels ...Channel) *Fanout {
	return &Fanout{channels: channels}
}

// Names lists the configured channels.
func (f *Fanout) Names() string {
	names := make([]string, 0, len(f.channels))
	for _, ch := range f.channels {
		names = append(names, ch.Name())
	}
	return strings.Join(names, ",")
}

func (f *Fanout) Deliver(ctx context.Context, msg Message) Delivery {
	var d Delivery
	for _, ch := range f.channels {
		res, err := ch.Deliver(ctx, msg)
		if res.Channel == "" {
			res.Channel = ch.Name()
		}
		d.Results = append(d.Results, res)
		if res.Attempted() || err != nil {
			d.Attempted++
		}
		if len(res.Delivered) > 0 {
			d.Delivered = true
		}
		if err != nil {
			d.Errors = append(d.Errors, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return d
}
