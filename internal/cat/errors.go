package cat

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for operations on an unknown user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrItemNotFound is returned when a submission names an item that is
	// not part of the session's pool.
	ErrItemNotFound = errors.New("item not found")
	// ErrAlreadyAnswered is returned when an item is submitted twice.
	// It matches ErrItemNotFound under errors.Is.
	ErrAlreadyAnswered = fmt.Errorf("%w: already answered", ErrItemNotFound)
	// ErrSessionCompleted is returned for submissions after the last item.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrEmptyItemBank is returned when no bank item qualifies for a session.
	ErrEmptyItemBank = errors.New("no qualifying items in item bank")
)
