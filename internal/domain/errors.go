package domain

import "errors"

var (
	// ErrNotFound is returned when a card id is not in the store.
	// Callers should only reference ids they obtained from the store, so this
	// indicates a caller bug.
	ErrNotFound = errors.New("card not found")
	// ErrEmptyStore is returned when selecting from zero cards.
	ErrEmptyStore = errors.New("no cards available")
	// ErrDuplicate is returned when a card id is added twice.
	ErrDuplicate = errors.New("duplicate card id")
)
