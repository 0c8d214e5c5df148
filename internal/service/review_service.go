package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"srs-planner/internal/repository"
	"srs-planner/internal/srs"
)

// NewItem describes a card that has just been created.
type NewItem struct {
	ItemID   string
	OwnerID  string
	DeckID   string
	Front    string
	Back     string
	DeckName string
}

// ReviewResult is the schedule after a review or a manual move.
type ReviewResult struct {
	ItemID          string
	State           srs.State
	Version         int64
	IntervalDisplay string
}

// ReviewService applies the ladder to item creation and review events.
type ReviewService struct {
	store      repository.ItemStore
	maxRetries uint
	logger     *slog.Logger
}

func NewReviewService(store repository.ItemStore, maxRetries int, logger *slog.Logger) *ReviewService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &ReviewService{store: store, maxRetries: uint(maxRetries), logger: logger}
}

// OnItemCreated stores the initial schedule of a new card: step 0, due at now.
func (s *ReviewService) OnItemCreated(ctx context.Context, item NewItem, now time.Time) (srs.State, error) {
	if strings.TrimSpace(item.ItemID) == "" || strings.TrimSpace(item.OwnerID) == "" {
		return srs.State{}, fmt.Errorf("%w: item and owner ids are required", ErrInvalidInput)
	}

	state := srs.Initial(now.UTC())
	err := s.store.Create(ctx, repository.ScheduledItem{
		ItemID:  item.ItemID,
		OwnerID: item.OwnerID,
		DeckID:  item.DeckID,
		State:   state,
		Details: &repository.ItemDetails{Front: item.Front, Back: item.Back, DeckName: item.DeckName},
	})
	if err != nil {
		return srs.State{}, err
	}

	serviceLogger(ctx, s.logger, "review", "item_created", "owner", item.OwnerID, "item", item.ItemID).Debug("item scheduled")
	return state, nil
}

// OnItemsCreated schedules several cards and stops at the first failure.
func (s *ReviewService) OnItemsCreated(ctx context.Context, items []NewItem, now time.Time) ([]srs.State, error) {
	states := make([]srs.State, 0, len(items))
	for _, item := range items {
		state, err := s.OnItemCreated(ctx, item, now)
		if err != nil {
			return states, fmt.Errorf("schedule item %s: %w", item.ItemID, err)
		}
		states = append(states, state)
	}
	return states, nil
}

// OnReview applies outcome to the item. Writes are guarded by the stored
// version; a lost race re-reads the item and applies the outcome again.
func (s *ReviewService) OnReview(ctx context.Context, itemID, ownerID string, outcome srs.Outcome, now time.Time) (ReviewResult, error) {
	if !outcome.IsValid() {
		return ReviewResult{}, fmt.Errorf("%w: %s", srs.ErrInvalidOutcome, outcome)
	}
	now = now.UTC()
	return s.mutate(ctx, "review", itemID, ownerID, func(cur srs.State) srs.State {
		return srs.Transition(cur, outcome, now)
	})
}

// Reschedule moves an item to the ladder step named by a delay label ("now",
// "1_day", ... "36_months") without counting a review.
func (s *ReviewService) Reschedule(ctx context.Context, itemID, ownerID, delay string, now time.Time) (ReviewResult, error) {
	step, dueNow := srs.StepForDelay(delay)
	now = now.UTC()
	return s.mutate(ctx, "reschedule", itemID, ownerID, func(cur srs.State) srs.State {
		return srs.AtStep(cur, step, dueNow, now)
	})
}

func (s *ReviewService) mutate(ctx context.Context, operation, itemID, ownerID string, next func(srs.State) srs.State) (ReviewResult, error) {
	logger := serviceLogger(ctx, s.logger, "review", operation, "owner", ownerID, "item", itemID)

	var updated repository.ScheduledItem
	err := retry.Do(
		func() error {
			cur, err := s.store.Get(ctx, itemID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if cur.OwnerID != ownerID {
				return retry.Unrecoverable(fmt.Errorf("item %s of owner %s: %w", itemID, ownerID, repository.ErrNotFound))
			}
			updated, err = s.store.Update(ctx, itemID, cur.Version, next(cur.State))
			if err != nil && !errors.Is(err, repository.ErrConcurrentModification) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.maxRetries),
		retry.Delay(time.Millisecond),
		retry.MaxJitter(5*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.FixedDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("retrying after concurrent update", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		logger.Warn("schedule update failed", "kind", ErrorKind(err), "error", err)
		return ReviewResult{}, err
	}

	return ReviewResult{
		ItemID:          updated.ItemID,
		State:           updated.State,
		Version:         updated.Version,
		IntervalDisplay: srs.DisplayInterval(updated.State.Interval),
	}, nil
}
