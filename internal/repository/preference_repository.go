package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"srs-planner/internal/model"
)

// PreferenceUpdate carries the fields to change; nil fields stay as they are.
type PreferenceUpdate struct {
	Timezone       *string
	EveningEnabled *bool
	MorningEnabled *bool
}

// PreferenceRepository stores notification preferences.
type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetOrCreate returns the owner's preferences, creating defaults (UTC, every
// reminder on) on first access.
func (r *PreferenceRepository) GetOrCreate(ctx context.Context, ownerID string) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	db := r.db.WithContext(ctx)
	err := db.Where("owner_id = ?", ownerID).First(&pref).Error
	switch {
	case err == nil:
		return &pref, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		pref = model.NotificationPreference{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			Timezone:       "UTC",
			EveningEnabled: true,
			MorningEnabled: true,
		}
		if err := db.Create(&pref).Error; err != nil {
			return nil, fmt.Errorf("create preferences: %w", err)
		}
		return &pref, nil
	default:
		return nil, fmt.Errorf("find preferences: %w", err)
	}
}

func (r *PreferenceRepository) Update(ctx context.Context, ownerID string, update PreferenceUpdate) (*model.NotificationPreference, error) {
	pref, err := r.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if update.Timezone != nil {
		changes["timezone"] = *update.Timezone
	}
	if update.EveningEnabled != nil {
		changes["evening_enabled"] = *update.EveningEnabled
	}
	if update.MorningEnabled != nil {
		changes["morning_enabled"] = *update.MorningEnabled
	}
	if len(changes) == 0 {
		return pref, nil
	}

	if err := r.db.WithContext(ctx).Model(pref).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return r.GetOrCreate(ctx, ownerID)
}

// ListEnabled returns every preference row with the trigger switched on.
func (r *PreferenceRepository) ListEnabled(ctx context.Context, kind model.TriggerKind) ([]model.NotificationPreference, error) {
	var column string
	switch kind {
	case model.TriggerEveningPractice:
		column = "evening_enabled"
	case model.TriggerMorningFlashcard:
		column = "morning_enabled"
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", kind)
	}

	var prefs []model.NotificationPreference
	if err := r.db.WithContext(ctx).Where(column+" = ?", true).Order("owner_id ASC").Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}
