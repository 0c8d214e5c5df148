package service

import (
	"context"

	"srs-planner/internal/model"
	"srs-planner/internal/repository"
)

// DeckSummary is a deck with its due badge.
type DeckSummary struct {
	Deck  model.Deck
	Due   int
	Total int
}

// DeckService provides helpers around decks.
type DeckService struct {
	repo    *repository.DeckRepository
	queries *QueryService
}

func NewDeckService(repo *repository.DeckRepository, queries *QueryService) *DeckService {
	return &DeckService{repo: repo, queries: queries}
}

func (s *DeckService) List(ctx context.Context, ownerID string) ([]DeckSummary, error) {
	decks, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	counts, err := s.queries.DueCountsByDeck(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	byDeck := make(map[string]DeckDue, len(counts))
	for _, c := range counts {
		byDeck[c.DeckID] = c
	}

	out := make([]DeckSummary, 0, len(decks))
	for _, deck := range decks {
		c := byDeck[deck.ID]
		out = append(out, DeckSummary{Deck: deck, Due: c.Due, Total: c.Total})
	}
	return out, nil
}

// Filter resolves a deck name into an item filter. An empty name matches every deck.
func (s *DeckService) Filter(ctx context.Context, ownerID, name string) (repository.ItemFilter, error) {
	if name == "" {
		return repository.ItemFilter{}, nil
	}
	deck, err := s.repo.FindByName(ctx, ownerID, name)
	if err != nil {
		return repository.ItemFilter{}, err
	}
	return repository.ItemFilter{DeckID: deck.ID}, nil
}
