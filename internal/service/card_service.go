package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"srs-planner/internal/repository"
	"srs-planner/internal/srs"
)

// CardInput represents data required to create a flashcard.
type CardInput struct {
	Front string
	Back  string
	Deck  string
}

// Card is a created flashcard with its first schedule.
type Card struct {
	ID       string
	DeckID   string
	DeckName string
	Front    string
	Back     string
	State    srs.State
}

// CardService wraps flashcard creation on top of decks and the scheduler.
type CardService struct {
	deckRepo *repository.DeckRepository
	reviews  *ReviewService
}

func NewCardService(deckRepo *repository.DeckRepository, reviews *ReviewService) *CardService {
	return &CardService{deckRepo: deckRepo, reviews: reviews}
}

func (s *CardService) CreateCard(ctx context.Context, ownerID string, input CardInput, now time.Time) (*Card, error) {
	cards, err := s.CreateCards(ctx, ownerID, []CardInput{input}, now)
	if err != nil {
		return nil, err
	}
	return &cards[0], nil
}

// CreateCards creates every card and schedules it as due now.
func (s *CardService) CreateCards(ctx context.Context, ownerID string, inputs []CardInput, now time.Time) ([]Card, error) {
	cards := make([]Card, 0, len(inputs))
	items := make([]NewItem, 0, len(inputs))
	for _, input := range inputs {
		front := strings.TrimSpace(input.Front)
		back := strings.TrimSpace(input.Back)
		if front == "" || back == "" {
			return nil, fmt.Errorf("%w: front and back are required", ErrInvalidInput)
		}

		card := Card{ID: uuid.NewString(), Front: front, Back: back}
		if input.Deck != "" {
			deck, err := s.deckRepo.GetOrCreate(ctx, ownerID, input.Deck)
			if err != nil {
				return nil, err
			}
			if deck != nil {
				card.DeckID = deck.ID
				card.DeckName = deck.Name
			}
		}
		cards = append(cards, card)
		items = append(items, NewItem{
			ItemID:   card.ID,
			OwnerID:  ownerID,
			DeckID:   card.DeckID,
			Front:    card.Front,
			Back:     card.Back,
			DeckName: card.DeckName,
		})
	}

	states, err := s.reviews.OnItemsCreated(ctx, items, now)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		cards[i].State = states[i]
	}
	return cards, nil
}
