package domain

import "errors"

var (
	// ErrCoordinatesNotSet means a route was requested before the session
	// stored an origin and destination
	ErrCoordinatesNotSet = errors.New("coordinates not set, call /get-cords first")

	// ErrSessionNotFound is returned by repositories for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCoordinate wraps latitude or longitude values outside their bounds
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// NoRouteError carries the routing provider's message when it returned no usable paths
type NoRouteError struct {
	Message string
}

func (e *NoRouteError) Error() string {
	if e.Message == "" {
		return "no route found"
	}
	return "no route found: " + e.Message
}
