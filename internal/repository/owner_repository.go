package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"srs-planner/internal/model"
)

// OwnerRepository handles owners and their Telegram link.
type OwnerRepository struct {
	db *gorm.DB
}

func NewOwnerRepository(db *gorm.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// TelegramOwnerID is the owner id used for accounts created from Telegram.
func TelegramOwnerID(telegramID int64) string {
	return "tg:" + strconv.FormatInt(telegramID, 10)
}

// UpsertFromTelegram finds or creates an owner based on TelegramID and updates basic profile info.
func (r *OwnerRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, username string) (*model.Owner, error) {
	var owner model.Owner
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&owner).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": firstName,
			"username":   username,
		}
		if err := db.Model(&owner).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update owner: %w", err)
		}
		owner.FirstName = firstName
		owner.Username = username
		return &owner, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		owner = model.Owner{
			ID:         TelegramOwnerID(telegramID),
			TelegramID: &telegramID,
			FirstName:  firstName,
			Username:   username,
		}
		if err := db.Create(&owner).Error; err != nil {
			return nil, fmt.Errorf("create owner: %w", err)
		}
		return &owner, nil
	default:
		return nil, fmt.Errorf("find owner: %w", err)
	}
}

func (r *OwnerRepository) FindByID(ctx context.Context, id string) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("owner %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find owner: %w", err)
	}
	return &owner, nil
}
