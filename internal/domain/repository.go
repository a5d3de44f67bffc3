package domain

import "context"

// SessionRepository stores the per-session route handoff state.
// Writes are last-write-wins; nothing expires.
type SessionRepository interface {
	// SavePending overwrites the session's origin and destination
	SavePending(ctx context.Context, sessionID string, req PendingRouteRequest) error

	// GetPending returns ErrSessionNotFound when nothing was saved
	GetPending(ctx context.Context, sessionID string) (PendingRouteRequest, error)

	// SaveRouteRisk caches the average risk of the last selected route
	SaveRouteRisk(ctx context.Context, sessionID string, risk float64) error

	// GetRouteRisk reports ok=false when no selection has run for the session
	GetRouteRisk(ctx context.Context, sessionID string) (risk float64, ok bool, err error)

	// Health checks storage connectivity
	Health(ctx context.Context) error
}
