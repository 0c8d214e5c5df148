package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"srs-planner/internal/model"
)

// ScanLockRepository hands out leases on named jobs so that only one process
// runs a job at a time.
type ScanLockRepository struct {
	db *gorm.DB
}

func NewScanLockRepository(db *gorm.DB) *ScanLockRepository {
	return &ScanLockRepository{db: db}
}

// Acquire takes the lease for holder until now+lease. It returns false when
// another holder keeps an unexpired lease.
func (r *ScanLockRepository) Acquire(ctx context.Context, name, holder string, now time.Time, lease time.Duration) (bool, error) {
	now = now.UTC()
	lock := model.ScanLock{Name: name, Holder: holder, ExpiresAt: now.Add(lease)}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, fmt.Errorf("create scan lock %s: %w", name, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = r.db.WithContext(ctx).Model(&model.ScanLock{}).
		Where("name = ? AND expires_at < ?", name, now).
		Updates(map[string]any{"holder": holder, "expires_at": lock.ExpiresAt})
	if res.Error != nil {
		return false, fmt.Errorf("take over scan lock %s: %w", name, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release drops the lease if holder still owns it.
func (r *ScanLockRepository) Release(ctx context.Context, name, holder string) error {
	err := r.db.WithContext(ctx).
		Where("name = ? AND holder = ?", name, holder).
		Delete(&model.ScanLock{}).Error
	if err != nil {
		return fmt.Errorf("release scan lock %s: %w", name, err)
	}
	return nil
}
