package repository

import (
	"context"

	"gorm.io/gorm"
)

// DispatchRepos are the repositories a dispatch pass works with. Inside
// InDispatchTx all of them share one transaction.
type DispatchRepos struct {
	Preferences *PreferenceRepository
	Logs        *DispatchLogRepository
	Tokens      *PushTokenRepository
	Sessions    *SessionRepository
	Owners      *OwnerRepository
	Locks       *ScanLockRepository
}

func newDispatchRepos(db *gorm.DB) DispatchRepos {
	return DispatchRepos{
		Preferences: NewPreferenceRepository(db),
		Logs:        NewDispatchLogRepository(db),
		Tokens:      NewPushTokenRepository(db),
		Sessions:    NewSessionRepository(db),
		Owners:      NewOwnerRepository(db),
		Locks:       NewScanLockRepository(db),
	}
}

// Transactor runs a unit of work inside a database transaction.
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// Repos returns the dispatch repositories bound to no transaction. Every call
// on them holds the database only for its own statement.
func (t *Transactor) Repos() DispatchRepos {
	return newDispatchRepos(t.db)
}

// InDispatchTx commits when fn returns nil and rolls back otherwise.
func (t *Transactor) InDispatchTx(ctx context.Context, fn func(repos DispatchRepos) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newDispatchRepos(tx))
	})
}
