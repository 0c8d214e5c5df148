package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"srs-planner/internal/model"
)

// PushTokenRepository stores device push tokens.
type PushTokenRepository struct {
	db *gorm.DB
}

func NewPushTokenRepository(db *gorm.DB) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

// Upsert registers a token. A token seen before moves to ownerID and is reactivated.
func (r *PushTokenRepository) Upsert(ctx context.Context, ownerID, token, platform string) (*model.PushToken, error) {
	var existing model.PushToken
	db := r.db.WithContext(ctx)
	err := db.Where("token = ?", token).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"owner_id":  ownerID,
			"platform":  platform,
			"is_active": true,
		}
		if err := db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update push token: %w", err)
		}
		existing.OwnerID = ownerID
		existing.Platform = platform
		existing.IsActive = true
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := model.PushToken{
			ID:       uuid.NewString(),
			OwnerID:  ownerID,
			Token:    token,
			Platform: platform,
			IsActive: true,
		}
		if err := db.Create(&created).Error; err != nil {
			return nil, fmt.Errorf("create push token: %w", err)
		}
		return &created, nil
	default:
		return nil, fmt.Errorf("find push token: %w", err)
	}
}

func (r *PushTokenRepository) ActiveTokens(ctx context.Context, ownerID string) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&model.PushToken{}).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("token ASC").
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	return tokens, nil
}

// Deactivate marks a token the provider rejected.
func (r *PushTokenRepository) Deactivate(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Model(&model.PushToken{}).
		Where("token = ?", token).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("deactivate push token: %w", err)
	}
	return nil
}

// Delete removes an owner's token (logout).
func (r *PushTokenRepository) Delete(ctx context.Context, ownerID, token string) error {
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND token = ?", ownerID, token).
		Delete(&model.PushToken{}).Error
	if err != nil {
		return fmt.Errorf("delete push token: %w", err)
	}
	return nil
}
