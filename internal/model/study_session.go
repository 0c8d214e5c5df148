package model

import "time"

// StudySession records that an owner practised a topic. The evening reminder
// only goes out to owners with a session on the current day.
type StudySession struct {
	ID        string    `gorm:"primaryKey;size:36"`
	OwnerID   string    `gorm:"size:64;not null;index:idx_sessions_owner_started,priority:1"`
	Topic     string    `gorm:"size:200"`
	StartedAt time.Time `gorm:"not null;index:idx_sessions_owner_started,priority:2"`
	CreatedAt time.Time
}
