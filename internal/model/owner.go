package model

import "time"

// Owner is the account cards and preferences belong to. Owners coming from
// Telegram keep their chat id so reminders can reach them there.
type Owner struct {
	ID         string `gorm:"primaryKey;size:64"`
	TelegramID *int64 `gorm:"uniqueIndex"`
	FirstName  string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
