package service

import (
	"errors"

	"srs-planner/internal/notify"
	"srs-planner/internal/repository"
	"srs-planner/internal/srs"
)

var (
	// ErrInvalidTimezone is returned for IANA zone names that cannot be loaded.
	ErrInvalidTimezone = errors.New("service: invalid timezone")
	// ErrScanInProgress is returned when a dispatch scan is already running.
	ErrScanInProgress = errors.New("service: dispatch scan already in progress")
	// ErrInvalidInput is returned for empty ids or texts.
	ErrInvalidInput = errors.New("service: invalid input")
)

// ErrorKind maps sentinel errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, repository.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrInvalidTimezone):
		return "invalid_timezone"
	case errors.Is(err, ErrScanInProgress):
		return "scan_in_progress"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, srs.ErrInvalidOutcome):
		return "invalid_outcome"
	case errors.Is(err, notify.ErrDeliveryFailure):
		return "delivery_failure"
	}
	return "unexpected"
}
