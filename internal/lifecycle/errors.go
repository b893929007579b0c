package lifecycle

import "errors"

var (
	// ErrInvalidTransition means the requested action is not legal from the
	// record's current status. Recoverable: callers re-read ValidActions.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")

	// ErrUnauthorized means the actor lacks the permission gating the action.
	ErrUnauthorized = errors.New("lifecycle: unauthorized")
)
