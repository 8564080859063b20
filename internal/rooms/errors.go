package rooms

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound means the join code matched no room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomAlreadyStarted means a join was attempted after the race began.
	ErrRoomAlreadyStarted = errors.New("room already started")
	// ErrRoomCreation wraps any store failure while creating a room or its
	// host player. No partial-state cleanup is attempted: a room insert that
	// succeeds before a failed host insert leaves an orphaned room behind.
	ErrRoomCreation = errors.New("room creation failed")
)

// ValidationError reports client-side input rejected before any store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
