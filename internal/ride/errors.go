package ride

import (
	"errors"
	"fmt"
)

// Sentinel errors for ride operations. Handlers check these with errors.Is to
// pick the user-facing phrasing; anything else is treated as an internal error.
var (
	// ErrNotFound means the ride id does not exist (deleted or never created).
	ErrNotFound = errors.New("ride not found")

	// ErrNotCreator means a user other than the ride creator attempted a
	// privileged operation.
	ErrNotCreator = errors.New("only the ride creator can do this")

	// ErrConflict is the base error for redundant state transitions.
	ErrConflict = errors.New("conflicting ride state")

	// ErrAlreadyCancelled is returned by Cancel on a cancelled ride.
	ErrAlreadyCancelled = fmt.Errorf("%w: ride is already cancelled", ErrConflict)

	// ErrNotCancelled is returned by Resume on an active ride.
	ErrNotCancelled = fmt.Errorf("%w: ride is not cancelled", ErrConflict)
)

// ValidationError reports a bad or missing ride field. The message is meant to
// be shown to the user so they can correct the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AsValidation unwraps err into a *ValidationError, or returns nil.
func AsValidation(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
