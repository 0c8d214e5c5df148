package model

import "time"

// Flashcard is a single learning item together with its schedule columns.
// Version is bumped on every schedule write and guards against lost updates.
type Flashcard struct {
	ID              string `gorm:"primaryKey;size:36"`
	OwnerID         string `gorm:"size:64;not null;index:idx_flashcards_owner_due,priority:1"`
	DeckID          string `gorm:"size:36;index"`
	Front           string
	Back            string
	Step            int       `gorm:"not null;default:0"`
	DueAt           time.Time `gorm:"not null;index:idx_flashcards_owner_due,priority:2"`
	IntervalMinutes int       `gorm:"not null"`
	ReviewCount     int       `gorm:"not null;default:0"`
	LastReviewedAt  *time.Time
	Version         int64 `gorm:"not null;default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Deck            *Deck `gorm:"foreignKey:DeckID"`
}
