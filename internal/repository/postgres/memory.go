package postgres

import (
	"context"
	"sync"

	"github.com/saferoute/backend/internal/domain"
)

type memorySession struct {
	pending domain.PendingRouteRequest
	risk    float64
	hasRisk bool
}

// MemoryRepository implements domain.SessionRepository in process memory.
// Used when no database is configured and in tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*memorySession)}
}

// SavePending overwrites the session's origin and destination
func (r *MemoryRepository) SavePending(ctx context.Context, sessionID string, req domain.PendingRouteRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.pending = req
		return nil
	}
	r.sessions[sessionID] = &memorySession{pending: req}
	return nil
}

// GetPending returns the session's origin and destination
func (r *MemoryRepository) GetPending(ctx context.Context, sessionID string) (domain.PendingRouteRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.PendingRouteRequest{}, domain.ErrSessionNotFound
	}
	return s.pending, nil
}

// SaveRouteRisk caches the session's route risk
func (r *MemoryRepository) SaveRouteRisk(ctx context.Context, sessionID string, risk float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.risk, s.hasRisk = risk, true
	return nil
}

// GetRouteRisk returns the session's cached route risk
func (r *MemoryRepository) GetRouteRisk(ctx context.Context, sessionID string) (float64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.hasRisk {
		return 0, false, nil
	}
	return s.risk, true, nil
}

// Health always returns nil in memory mode
func (r *MemoryRepository) Health(ctx context.Context) error {
	return nil
}
