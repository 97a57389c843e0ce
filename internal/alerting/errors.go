package alerting

import "errors"

// Domain errors for the alerting package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, alerting.ErrInvalidSeverity) {
//	    // handle bad input
//	}
var (
	// ErrInvalidSeverity is returned when a severity value is not recognised.
	ErrInvalidSeverity = errors.New("alerting: invalid severity")

	// ErrInvalidCapacity is returned when a buffer is created with capacity < 1.
	ErrInvalidCapacity = errors.New("alerting: invalid buffer capacity")

	// ErrEmptyText is returned when a message is published with no text.
	ErrEmptyText = errors.New("alerting: empty message text")
)
