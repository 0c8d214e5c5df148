package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"srs-planner/internal/model"
)

// DispatchLogRepository appends send attempts and answers dedup questions.
type DispatchLogRepository struct {
	db *gorm.DB
}

func NewDispatchLogRepository(db *gorm.DB) *DispatchLogRepository {
	return &DispatchLogRepository{db: db}
}

func (r *DispatchLogRepository) Append(ctx context.Context, entry model.DispatchLog) (*model.DispatchLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.SentAt = entry.SentAt.UTC()
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("append dispatch log: %w", err)
	}
	return &entry, nil
}

// WasSentSince reports whether a successful send of kind reached the owner at
// or after since.
func (r *DispatchLogRepository) WasSentSince(ctx context.Context, ownerID string, kind model.TriggerKind, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.DispatchLog{}).
		Where("owner_id = ? AND kind = ? AND status = ? AND sent_at >= ?", ownerID, kind, model.DispatchSent, since.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count dispatch logs: %w", err)
	}
	return count > 0, nil
}

func (r *DispatchLogRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.DispatchLog, error) {
	var logs []model.DispatchLog
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("sent_at ASC, id ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list dispatch logs: %w", err)
	}
	return logs, nil
}

// PruneBefore deletes entries older than cutoff and returns how many were removed.
func (r *DispatchLogRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("sent_at < ?", cutoff.UTC()).Delete(&model.DispatchLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune dispatch logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
