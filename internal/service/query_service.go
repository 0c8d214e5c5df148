package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"srs-planner/internal/repository"
	"srs-planner/internal/srs"
)

// DueBucketLabel names the timeline bucket of items that are due now.
const DueBucketLabel = "due"

type DueResult struct {
	Items    []repository.ScheduledItem
	TotalDue int
}

// TimelinePeriod is one horizon bucket.
type TimelinePeriod struct {
	Period string
	Count  int
	Items  []repository.ScheduledItem
}

type TimelineResult struct {
	Periods       []TimelinePeriod
	TotalDue      int
	TotalUpcoming int
}

// QueryService answers due and timeline questions over the item store.
type QueryService struct {
	store        repository.ItemStore
	defaultLimit int
	now          func() time.Time
	logger       *slog.Logger
}

func NewQueryService(store repository.ItemStore, defaultLimit int, logger *slog.Logger) *QueryService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &QueryService{
		store:        store,
		defaultLimit: defaultLimit,
		now:          time.Now,
		logger:       logger,
	}
}

// Due returns up to limit items due now, oldest first, together with the
// number of all due items. limit <= 0 uses the configured default.
func (s *QueryService) Due(ctx context.Context, ownerID string, limit int, filter repository.ItemFilter) (DueResult, error) {
	return s.DueAt(ctx, ownerID, s.now(), limit, filter)
}

// DueAt is Due evaluated at a fixed instant.
func (s *QueryService) DueAt(ctx context.Context, ownerID string, now time.Time, limit int, filter repository.ItemFilter) (DueResult, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	items, total, err := s.store.DuePage(ctx, ownerID, now, limit, filter)
	if err != nil {
		return DueResult{}, err
	}
	return DueResult{Items: items, TotalDue: total}, nil
}

// CountDue reports how many items of the owner are due at now.
func (s *QueryService) CountDue(ctx context.Context, ownerID string, now time.Time) (int, error) {
	return s.store.CountDueBefore(ctx, ownerID, now, repository.ItemFilter{})
}

// Timeline splits every item of the owner into the "due" bucket and one
// bucket per ladder step. Empty buckets are left out.
func (s *QueryService) Timeline(ctx context.Context, ownerID string, filter repository.ItemFilter) (TimelineResult, error) {
	return s.TimelineAt(ctx, ownerID, s.now(), filter)
}

// TimelineAt is Timeline evaluated at a fixed instant.
func (s *QueryService) TimelineAt(ctx context.Context, ownerID string, now time.Time, filter repository.ItemFilter) (TimelineResult, error) {
	items, err := s.store.AllForOwner(ctx, ownerID, filter)
	if err != nil {
		return TimelineResult{}, err
	}
	sortByDue(items)

	var due []repository.ScheduledItem
	byStep := make([][]repository.ScheduledItem, srs.Steps())
	for _, item := range items {
		if item.State.IsDue(now) {
			due = append(due, item)
			continue
		}
		step := srs.Clamp(item.State.Step)
		byStep[step] = append(byStep[step], item)
	}

	result := TimelineResult{Periods: []TimelinePeriod{}}
	if len(due) > 0 {
		result.Periods = append(result.Periods, TimelinePeriod{Period: DueBucketLabel, Count: len(due), Items: due})
	}
	for step, bucket := range byStep {
		if len(bucket) == 0 {
			continue
		}
		result.Periods = append(result.Periods, TimelinePeriod{Period: srs.LabelFor(step), Count: len(bucket), Items: bucket})
		result.TotalUpcoming += len(bucket)
	}
	result.TotalDue = len(due)
	return result, nil
}

// DeckDue is the due badge of one deck.
type DeckDue struct {
	DeckID string
	Due    int
	Total  int
}

// DueCountsByDeck counts due and total items per deck, ordered by deck id.
func (s *QueryService) DueCountsByDeck(ctx context.Context, ownerID string) ([]DeckDue, error) {
	items, err := s.store.AllForOwner(ctx, ownerID, repository.ItemFilter{})
	if err != nil {
		return nil, err
	}

	now := s.now()
	counts := make(map[string]*DeckDue)
	for _, item := range items {
		c, ok := counts[item.DeckID]
		if !ok {
			c = &DeckDue{DeckID: item.DeckID}
			counts[item.DeckID] = c
		}
		c.Total++
		if item.State.IsDue(now) {
			c.Due++
		}
	}

	out := make([]DeckDue, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeckID < out[j].DeckID })
	return out, nil
}

// Item returns one of the owner's items. Items of other owners are reported
// as not found.
func (s *QueryService) Item(ctx context.Context, itemID, ownerID string) (repository.ScheduledItem, error) {
	item, err := s.store.Get(ctx, itemID)
	if err != nil {
		return repository.ScheduledItem{}, err
	}
	if item.OwnerID != ownerID {
		return repository.ScheduledItem{}, fmt.Errorf("item %s of owner %s: %w", itemID, ownerID, repository.ErrNotFound)
	}
	return item, nil
}

// NextReviewAt returns when the owner's item is due next.
func (s *QueryService) NextReviewAt(ctx context.Context, itemID, ownerID string) (time.Time, error) {
	item, err := s.Item(ctx, itemID, ownerID)
	if err != nil {
		return time.Time{}, err
	}
	return item.State.DueAt, nil
}

func sortByDue(items []repository.ScheduledItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].State.DueAt, items[j].State.DueAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return items[i].ItemID < items[j].ItemID
	})
}
