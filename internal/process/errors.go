package process

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the child is already
	// running or starting.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrHealthCheck wraps a failed health probe that forced the child
	// to be terminated while still alive.
	ErrHealthCheck = errors.New("process: health check failed")

	// ErrGivenUp is reported once the restart budget is exhausted. The
	// manager stays alive to serve stats but will not respawn.
	ErrGivenUp = errors.New("process: restart budget exhausted")
)
