package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"srs-planner/internal/model"
)

// DeckRepository manages decks.
type DeckRepository struct {
	db *gorm.DB
}

func NewDeckRepository(db *gorm.DB) *DeckRepository {
	return &DeckRepository{db: db}
}

func (r *DeckRepository) GetOrCreate(ctx context.Context, ownerID, name string) (*model.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var deck model.Deck
	db := r.db.WithContext(ctx)
	err := db.Where("owner_id = ? AND name = ?", ownerID, name).First(&deck).Error
	switch {
	case err == nil:
		return &deck, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		deck = model.Deck{ID: uuid.NewString(), OwnerID: ownerID, Name: name}
		if err := db.Create(&deck).Error; err != nil {
			return nil, fmt.Errorf("create deck: %w", err)
		}
		return &deck, nil
	default:
		return nil, fmt.Errorf("find deck: %w", err)
	}
}

func (r *DeckRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Deck, error) {
	var decks []model.Deck
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name ASC").Find(&decks).Error; err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

// FindByName looks a deck up by its name within the owner's decks.
func (r *DeckRepository) FindByName(ctx context.Context, ownerID, name string) (*model.Deck, error) {
	var deck model.Deck
	err := r.db.WithContext(ctx).Where("owner_id = ? AND name = ?", ownerID, strings.TrimSpace(name)).First(&deck).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("deck %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find deck: %w", err)
	}
	return &deck, nil
}
