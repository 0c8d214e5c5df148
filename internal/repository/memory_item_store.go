package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"

	"srs-planner/internal/srs"
)

const indexDegree = 32

type dueKey struct {
	dueAt  time.Time
	itemID string
}

func lessDueKey(a, b dueKey) bool {
	if !a.dueAt.Equal(b.dueAt) {
		return a.dueAt.Before(b.dueAt)
	}
	return a.itemID < b.itemID
}

type deckKey struct {
	ownerID string
	deckID  string
}

// MemoryItemStore keeps items in memory. Every owner (and every owner's deck)
// has a B-tree ordered by (due_at, item_id), so due queries only visit items
// that are actually due.
type MemoryItemStore struct {
	mu      sync.RWMutex
	items   map[string]ScheduledItem
	byOwner map[string]*btree.BTreeG[dueKey]
	byDeck  map[deckKey]*btree.BTreeG[dueKey]
}

var _ ItemStore = (*MemoryItemStore)(nil)

func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{
		items:   make(map[string]ScheduledItem),
		byOwner: make(map[string]*btree.BTreeG[dueKey]),
		byDeck:  make(map[deckKey]*btree.BTreeG[dueKey]),
	}
}

func (s *MemoryItemStore) Create(_ context.Context, item ScheduledItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ItemID]; ok {
		return fmt.Errorf("create item %s: %w", item.ItemID, ErrAlreadyExists)
	}
	item = cloneItem(item, true)
	item.Version = 1
	s.items[item.ItemID] = item
	s.indexLocked(item)
	return nil
}

func (s *MemoryItemStore) Get(_ context.Context, itemID string) (ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return ScheduledItem{}, fmt.Errorf("get item %s: %w", itemID, ErrNotFound)
	}
	return cloneItem(item, true), nil
}

func (s *MemoryItemStore) Update(_ context.Context, itemID string, expectedVersion int64, state srs.State) (ScheduledItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return ScheduledItem{}, fmt.Errorf("update item %s: %w", itemID, ErrNotFound)
	}
	if item.Version != expectedVersion {
		return ScheduledItem{}, fmt.Errorf("update item %s at version %d (stored %d): %w",
			itemID, expectedVersion, item.Version, ErrConcurrentModification)
	}

	s.unindexLocked(item)
	item.State = cloneState(state)
	item.Version++
	s.items[itemID] = item
	s.indexLocked(item)
	return cloneItem(item, true), nil
}

func (s *MemoryItemStore) DueBefore(_ context.Context, ownerID string, cutoff time.Time, limit int, filter ItemFilter) ([]ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dueLocked(ownerID, cutoff, limit, filter), nil
}

func (s *MemoryItemStore) DuePage(_ context.Context, ownerID string, cutoff time.Time, limit int, filter ItemFilter) ([]ScheduledItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dueLocked(ownerID, cutoff, limit, filter), s.countDueLocked(ownerID, cutoff, filter.DeckID), nil
}

func (s *MemoryItemStore) dueLocked(ownerID string, cutoff time.Time, limit int, filter ItemFilter) []ScheduledItem {
	out := make([]ScheduledItem, 0)
	tree := s.treeLocked(ownerID, filter.DeckID)
	if tree == nil {
		return out
	}
	tree.Ascend(func(k dueKey) bool {
		if k.dueAt.After(cutoff) {
			return false
		}
		out = append(out, cloneItem(s.items[k.itemID], filter.WithDetails))
		return limit <= 0 || len(out) < limit
	})
	return out
}

func (s *MemoryItemStore) AllForOwner(_ context.Context, ownerID string, filter ItemFilter) ([]ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := s.treeLocked(ownerID, filter.DeckID)
	if tree == nil {
		return []ScheduledItem{}, nil
	}

	out := make([]ScheduledItem, 0, tree.Len())
	tree.Ascend(func(k dueKey) bool {
		out = append(out, cloneItem(s.items[k.itemID], filter.WithDetails))
		return true
	})
	return out, nil
}

func (s *MemoryItemStore) CountDueBefore(_ context.Context, ownerID string, cutoff time.Time, filter ItemFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countDueLocked(ownerID, cutoff, filter.DeckID), nil
}

func (s *MemoryItemStore) countDueLocked(ownerID string, cutoff time.Time, deckID string) int {
	tree := s.treeLocked(ownerID, deckID)
	if tree == nil {
		return 0
	}
	count := 0
	tree.Ascend(func(k dueKey) bool {
		if k.dueAt.After(cutoff) {
			return false
		}
		count++
		return true
	})
	return count
}

func (s *MemoryItemStore) treeLocked(ownerID, deckID string) *btree.BTreeG[dueKey] {
	if deckID != "" {
		return s.byDeck[deckKey{ownerID: ownerID, deckID: deckID}]
	}
	return s.byOwner[ownerID]
}

func (s *MemoryItemStore) indexLocked(item ScheduledItem) {
	key := dueKey{dueAt: item.State.DueAt, itemID: item.ItemID}

	owner, ok := s.byOwner[item.OwnerID]
	if !ok {
		owner = btree.NewG(indexDegree, lessDueKey)
		s.byOwner[item.OwnerID] = owner
	}
	owner.ReplaceOrInsert(key)

	if item.DeckID == "" {
		return
	}
	dk := deckKey{ownerID: item.OwnerID, deckID: item.DeckID}
	deck, ok := s.byDeck[dk]
	if !ok {
		deck = btree.NewG(indexDegree, lessDueKey)
		s.byDeck[dk] = deck
	}
	deck.ReplaceOrInsert(key)
}

func (s *MemoryItemStore) unindexLocked(item ScheduledItem) {
	key := dueKey{dueAt: item.State.DueAt, itemID: item.ItemID}
	if owner, ok := s.byOwner[item.OwnerID]; ok {
		owner.Delete(key)
	}
	if item.DeckID == "" {
		return
	}
	if deck, ok := s.byDeck[deckKey{ownerID: item.OwnerID, deckID: item.DeckID}]; ok {
		deck.Delete(key)
	}
}
