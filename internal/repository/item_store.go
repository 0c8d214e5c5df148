package repository

import (
	"context"
	"time"

	"srs-planner/internal/srs"
)

// ScheduledItem is a card as seen by the scheduling engine.
type ScheduledItem struct {
	ItemID  string
	OwnerID string
	DeckID  string
	State   srs.State
	Version int64
	Details *ItemDetails
}

// ItemDetails carries card content. Only filled when asked for.
type ItemDetails struct {
	Front    string
	Back     string
	DeckName string
}

// ItemFilter narrows item queries. An empty DeckID matches every deck.
type ItemFilter struct {
	DeckID      string
	WithDetails bool
}

// ItemStore persists per-card schedule state.
//
// DueBefore returns items with DueAt <= cutoff ordered by DueAt and then by
// ItemID; limit <= 0 means no limit. DuePage is DueBefore plus the count of
// every due item, both read from one snapshot. Update succeeds only when
// expectedVersion matches the stored version and returns the item with its
// new version.
type ItemStore interface {
	Create(ctx context.Context, item ScheduledItem) error
	Get(ctx context.Context, itemID string) (ScheduledItem, error)
	Update(ctx context.Context, itemID string, expectedVersion int64, state srs.State) (ScheduledItem, error)
	DueBefore(ctx context.Context, ownerID string, cutoff time.Time, limit int, filter ItemFilter) ([]ScheduledItem, error)
	AllForOwner(ctx context.Context, ownerID string, filter ItemFilter) ([]ScheduledItem, error)
	CountDueBefore(ctx context.Context, ownerID string, cutoff time.Time, filter ItemFilter) (int, error)
	DuePage(ctx context.Context, ownerID string, cutoff time.Time, limit int, filter ItemFilter) ([]ScheduledItem, int, error)
}

func cloneState(s srs.State) srs.State {
	if s.LastReviewedAt != nil {
		reviewed := *s.LastReviewedAt
		s.LastReviewedAt = &reviewed
	}
	return s
}

func cloneItem(item ScheduledItem, withDetails bool) ScheduledItem {
	item.State = cloneState(item.State)
	if withDetails && item.Details != nil {
		details := *item.Details
		item.Details = &details
	} else {
		item.Details = nil
	}
	return item
}
