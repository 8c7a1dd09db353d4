package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrInvalidCommand is returned when a command payload cannot be decoded
	// or carries no actions.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrRateLimited is returned when a command waited too long for the
	// rate limiter.
	ErrRateLimited = errors.New("bridge: command rate limited")

	// ErrNotRunning is returned when a command arrives outside Run.
	ErrNotRunning = errors.New("bridge: not running")
)
