package model

import "time"

// Deck groups flashcards of one owner.
type Deck struct {
	ID         string `gorm:"primaryKey;size:36"`
	OwnerID    string `gorm:"size:64;index;index:idx_owner_deck_name,unique"`
	Name       string `gorm:"size:200;index:idx_owner_deck_name,unique"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Flashcards []Flashcard `gorm:"foreignKey:DeckID"`
}
