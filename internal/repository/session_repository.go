package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"srs-planner/internal/model"
)

// SessionRepository records study activity.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Record(ctx context.Context, ownerID, topic string, startedAt time.Time) (*model.StudySession, error) {
	session := model.StudySession{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Topic:     topic,
		StartedAt: startedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}
	return &session, nil
}

// TopicsSince returns distinct topics the owner studied at or after since.
func (r *SessionRepository) TopicsSince(ctx context.Context, ownerID string, since time.Time) ([]string, error) {
	var topics []string
	err := r.db.WithContext(ctx).Model(&model.StudySession{}).
		Where("owner_id = ? AND started_at >= ?", ownerID, since.UTC()).
		Distinct("topic").
		Order("topic ASC").
		Pluck("topic", &topics).Error
	if err != nil {
		return nil, fmt.Errorf("list studied topics: %w", err)
	}
	return topics, nil
}
