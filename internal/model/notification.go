package model

import "time"

// TriggerKind names a reminder the dispatch scanner can send.
type TriggerKind string

const (
	TriggerEveningPractice  TriggerKind = "evening_practice"
	TriggerMorningFlashcard TriggerKind = "morning_flashcards"
)

// DispatchStatus is the outcome of one send attempt.
type DispatchStatus string

const (
	DispatchSent   DispatchStatus = "sent"
	DispatchFailed DispatchStatus = "failed"
)

// NotificationPreference holds per-owner reminder settings. Rows are created
// with defaults on first access.
type NotificationPreference struct {
	ID             string `gorm:"primaryKey;size:36"`
	OwnerID        string `gorm:"size:64;uniqueIndex;not null"`
	Timezone       string `gorm:"size:64;not null;default:UTC"`
	EveningEnabled bool   `gorm:"not null"`
	MorningEnabled bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Enabled reports whether the trigger is switched on.
func (p NotificationPreference) Enabled(kind TriggerKind) bool {
	switch kind {
	case TriggerEveningPractice:
		return p.EveningEnabled
	case TriggerMorningFlashcard:
		return p.MorningEnabled
	default:
		return false
	}
}

// DispatchLog is an append-only record of a send attempt.
type DispatchLog struct {
	ID      string         `gorm:"primaryKey;size:36"`
	OwnerID string         `gorm:"size:64;not null;index:idx_dispatch_owner_kind_sent,priority:1"`
	Kind    TriggerKind    `gorm:"size:32;not null;index:idx_dispatch_owner_kind_sent,priority:2"`
	Status  DispatchStatus `gorm:"size:16;not null"`
	Error   *string
	SentAt  time.Time `gorm:"not null;index:idx_dispatch_owner_kind_sent,priority:3"`
}

// PushToken is a device token registered by the mobile app.
type PushToken struct {
	ID        string `gorm:"primaryKey;size:36"`
	OwnerID   string `gorm:"size:64;not null;index"`
	Token     string `gorm:"size:255;uniqueIndex;not null"`
	Platform  string `gorm:"size:16"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScanLock is a lease on a named job shared by every process using the
// database. A lease past ExpiresAt may be taken over.
type ScanLock struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Holder    string    `gorm:"size:36;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
