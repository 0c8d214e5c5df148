package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"srs-planner/internal/model"
	"srs-planner/internal/repository"
)

// PreferenceService manages reminder settings and device tokens.
type PreferenceService struct {
	prefs  *repository.PreferenceRepository
	tokens *repository.PushTokenRepository
	logs   *repository.DispatchLogRepository
	logger *slog.Logger
}

func NewPreferenceService(
	prefs *repository.PreferenceRepository,
	tokens *repository.PushTokenRepository,
	logs *repository.DispatchLogRepository,
	logger *slog.Logger,
) *PreferenceService {
	return &PreferenceService{prefs: prefs, tokens: tokens, logs: logs, logger: logger}
}

// TriggerStatus is one reminder as its owner sees it. Last is the most recent
// send attempt, nil when there was none.
type TriggerStatus struct {
	Kind    model.TriggerKind
	Enabled bool
	Last    *model.DispatchLog
}

type NotificationStatus struct {
	Timezone     string
	Triggers     []TriggerStatus
	ActiveTokens int
}

// Status reports the owner's reminder switches together with the last send
// attempt of each reminder.
func (s *PreferenceService) Status(ctx context.Context, ownerID string) (NotificationStatus, error) {
	pref, err := s.prefs.GetOrCreate(ctx, ownerID)
	if err != nil {
		return NotificationStatus{}, err
	}
	history, err := s.logs.ListByOwner(ctx, ownerID)
	if err != nil {
		return NotificationStatus{}, err
	}
	tokens, err := s.tokens.ActiveTokens(ctx, ownerID)
	if err != nil {
		return NotificationStatus{}, err
	}

	status := NotificationStatus{Timezone: pref.Timezone, ActiveTokens: len(tokens)}
	for _, kind := range []model.TriggerKind{model.TriggerEveningPractice, model.TriggerMorningFlashcard} {
		ts := TriggerStatus{Kind: kind, Enabled: pref.Enabled(kind)}
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Kind == kind {
				last := history[i]
				ts.Last = &last
				break
			}
		}
		status.Triggers = append(status.Triggers, ts)
	}
	return status, nil
}

// Get returns the owner's preferences, creating the defaults on first use.
func (s *PreferenceService) Get(ctx context.Context, ownerID string) (*model.NotificationPreference, error) {
	return s.prefs.GetOrCreate(ctx, ownerID)
}

// Update changes the given settings. Timezones must be valid IANA names.
func (s *PreferenceService) Update(ctx context.Context, ownerID string, update repository.PreferenceUpdate) (*model.NotificationPreference, error) {
	if update.Timezone != nil {
		name := strings.TrimSpace(*update.Timezone)
		loc, err := LoadTimezone(name)
		if err != nil {
			return nil, err
		}
		canonical := loc.String()
		update.Timezone = &canonical
	}

	pref, err := s.prefs.Update(ctx, ownerID, update)
	if err != nil {
		return nil, err
	}
	serviceLogger(ctx, s.logger, "preferences", "update", "owner", ownerID).Info("preferences updated",
		"timezone", pref.Timezone,
		"evening", pref.EveningEnabled,
		"morning", pref.MorningEnabled)
	return pref, nil
}

// SetTrigger switches a single reminder on or off.
func (s *PreferenceService) SetTrigger(ctx context.Context, ownerID string, kind model.TriggerKind, enabled bool) (*model.NotificationPreference, error) {
	var update repository.PreferenceUpdate
	switch kind {
	case model.TriggerEveningPractice:
		update.EveningEnabled = &enabled
	case model.TriggerMorningFlashcard:
		update.MorningEnabled = &enabled
	default:
		return nil, fmt.Errorf("%w: unknown trigger %q", ErrInvalidInput, kind)
	}
	return s.Update(ctx, ownerID, update)
}

// RegisterToken stores a device push token and makes sure preferences exist.
func (s *PreferenceService) RegisterToken(ctx context.Context, ownerID, token, platform string) (*model.PushToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty push token", ErrInvalidInput)
	}
	pt, err := s.tokens.Upsert(ctx, ownerID, token, platform)
	if err != nil {
		return nil, err
	}
	if _, err := s.prefs.GetOrCreate(ctx, ownerID); err != nil {
		return nil, err
	}
	return pt, nil
}

// UnregisterToken removes a token on logout.
func (s *PreferenceService) UnregisterToken(ctx context.Context, ownerID, token string) error {
	return s.tokens.Delete(ctx, ownerID, strings.TrimSpace(token))
}
