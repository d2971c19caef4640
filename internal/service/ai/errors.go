package ai

import "errors"

var (
	// ErrUpstream wraps failures reported by the model provider.
	ErrUpstream = errors.New("model upstream error")
	// ErrTurnInProgress is returned when a session already has a turn in flight.
	ErrTurnInProgress = errors.New("another turn is already in progress for this session")
	ErrUnknownModel   = errors.New("unknown model")
	ErrEmptyMessage   = errors.New("message must not be empty")
)
