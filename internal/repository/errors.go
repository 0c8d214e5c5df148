package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyExists is returned when an item id is already tracked.
	ErrAlreadyExists = errors.New("repository: already exists")
	// ErrConcurrentModification is returned when an update was based on a
	// stale version of the item.
	ErrConcurrentModification = errors.New("repository: concurrent modification")
)
