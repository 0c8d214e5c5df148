package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"srs-planner/internal/model"
	"srs-planner/internal/repository"
)

// ActivityService records study sessions used by the evening reminder.
type ActivityService struct {
	sessions *repository.SessionRepository
}

func NewActivityService(sessions *repository.SessionRepository) *ActivityService {
	return &ActivityService{sessions: sessions}
}

func (s *ActivityService) RecordSession(ctx context.Context, ownerID, topic string, startedAt time.Time) (*model.StudySession, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	return s.sessions.Record(ctx, ownerID, topic, startedAt)
}

// TopicsToday lists the topics studied since UTC midnight of now.
func (s *ActivityService) TopicsToday(ctx context.Context, ownerID string, now time.Time) ([]string, error) {
	return s.sessions.TopicsSince(ctx, ownerID, utcDayStart(now))
}
