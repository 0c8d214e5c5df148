package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"srs-planner/internal/model"
	"srs-planner/internal/srs"
)

// GormItemStore keeps schedule state in the flashcards table. Due queries are
// served by the (owner_id, due_at) index.
type GormItemStore struct {
	db *gorm.DB
}

var _ ItemStore = (*GormItemStore)(nil)

func NewGormItemStore(db *gorm.DB) *GormItemStore {
	return &GormItemStore{db: db}
}

func (r *GormItemStore) Create(ctx context.Context, item ScheduledItem) error {
	db := r.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&model.Flashcard{}).Where("id = ?", item.ItemID).Count(&existing).Error; err != nil {
		return fmt.Errorf("check flashcard: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("create flashcard %s: %w", item.ItemID, ErrAlreadyExists)
	}

	row := toFlashcard(item)
	row.Version = 1
	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create flashcard %s: %w", item.ItemID, ErrAlreadyExists)
		}
		return fmt.Errorf("create flashcard: %w", err)
	}
	return nil
}

func (r *GormItemStore) Get(ctx context.Context, itemID string) (ScheduledItem, error) {
	var row model.Flashcard
	err := r.db.WithContext(ctx).Preload("Deck").Where("id = ?", itemID).First(&row).Error
	switch {
	case err == nil:
		return fromFlashcard(row, true), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ScheduledItem{}, fmt.Errorf("get flashcard %s: %w", itemID, ErrNotFound)
	default:
		return ScheduledItem{}, fmt.Errorf("get flashcard: %w", err)
	}
}

func (r *GormItemStore) Update(ctx context.Context, itemID string, expectedVersion int64, state srs.State) (ScheduledItem, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&model.Flashcard{}).
		Where("id = ? AND version = ?", itemID, expectedVersion).
		Updates(map[string]interface{}{
			"step":             state.Step,
			"due_at":           state.DueAt.UTC(),
			"interval_minutes": int(state.Interval / time.Minute),
			"review_count":     state.ReviewCount,
			"last_reviewed_at": utcPtr(state.LastReviewedAt),
			"version":          gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return ScheduledItem{}, fmt.Errorf("update flashcard: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, itemID); err != nil {
			return ScheduledItem{}, err
		}
		return ScheduledItem{}, fmt.Errorf("update flashcard %s at version %d: %w", itemID, expectedVersion, ErrConcurrentModification)
	}
	return r.Get(ctx, itemID)
}

func (r *GormItemStore) DueBefore(ctx context.Context, ownerID string, cutoff time.Time, limit int, filter ItemFilter) ([]ScheduledItem, error) {
	query := r.scope(ctx, ownerID, filter).
		Where("due_at <= ?", cutoff.UTC()).
		Order("due_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Flashcard
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list due flashcards: %w", err)
	}
	return fromFlashcards(rows, filter.WithDetails), nil
}

func (r *GormItemStore) AllForOwner(ctx context.Context, ownerID string, filter ItemFilter) ([]ScheduledItem, error) {
	var rows []model.Flashcard
	if err := r.scope(ctx, ownerID, filter).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	return fromFlashcards(rows, filter.WithDetails), nil
}

func (r *GormItemStore) CountDueBefore(ctx context.Context, ownerID string, cutoff time.Time, filter ItemFilter) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Flashcard{}).
		Scopes(ownerScope(ownerID, filter.DeckID)).
		Where("due_at <= ?", cutoff.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count due flashcards: %w", err)
	}
	return int(count), nil
}

// DuePage reads the page and the total inside one transaction so both see
// the same rows.
func (r *GormItemStore) DuePage(ctx context.Context, ownerID string, cutoff time.Time, limit int, filter ItemFilter) ([]ScheduledItem, int, error) {
	var (
		items []ScheduledItem
		total int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot := &GormItemStore{db: tx}
		var err error
		if items, err = snapshot.DueBefore(ctx, ownerID, cutoff, limit, filter); err != nil {
			return err
		}
		total, err = snapshot.CountDueBefore(ctx, ownerID, cutoff, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *GormItemStore) scope(ctx context.Context, ownerID string, filter ItemFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Scopes(ownerScope(ownerID, filter.DeckID))
	if filter.WithDetails {
		query = query.Preload("Deck")
	}
	return query
}

func ownerScope(ownerID, deckID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("owner_id = ?", ownerID)
		if deckID != "" {
			db = db.Where("deck_id = ?", deckID)
		}
		return db
	}
}

func toFlashcard(item ScheduledItem) model.Flashcard {
	row := model.Flashcard{
		ID:              item.ItemID,
		OwnerID:         item.OwnerID,
		DeckID:          item.DeckID,
		Step:            item.State.Step,
		DueAt:           item.State.DueAt.UTC(),
		IntervalMinutes: int(item.State.Interval / time.Minute),
		ReviewCount:     item.State.ReviewCount,
		LastReviewedAt:  utcPtr(item.State.LastReviewedAt),
		Version:         item.Version,
	}
	if item.Details != nil {
		row.Front = item.Details.Front
		row.Back = item.Details.Back
	}
	return row
}

func fromFlashcard(row model.Flashcard, withDetails bool) ScheduledItem {
	item := ScheduledItem{
		ItemID:  row.ID,
		OwnerID: row.OwnerID,
		DeckID:  row.DeckID,
		State: srs.State{
			Step:           row.Step,
			Interval:       time.Duration(row.IntervalMinutes) * time.Minute,
			DueAt:          row.DueAt.UTC(),
			ReviewCount:    row.ReviewCount,
			LastReviewedAt: utcPtr(row.LastReviewedAt),
		},
		Version: row.Version,
	}
	if withDetails {
		item.Details = &ItemDetails{Front: row.Front, Back: row.Back}
		if row.Deck != nil {
			item.Details.DeckName = row.Deck.Name
		}
	}
	return item
}

func fromFlashcards(rows []model.Flashcard, withDetails bool) []ScheduledItem {
	items := make([]ScheduledItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, fromFlashcard(row, withDetails))
	}
	return items
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
