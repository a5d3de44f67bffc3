package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saferoute/backend/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS route_sessions (
		session_id   TEXT PRIMARY KEY,
		origin_lat   DOUBLE PRECISION NOT NULL,
		origin_lon   DOUBLE PRECISION NOT NULL,
		dest_lat     DOUBLE PRECISION NOT NULL,
		dest_lon     DOUBLE PRECISION NOT NULL,
		average_risk DOUBLE PRECISION,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresRepository implements domain.SessionRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the sessions table when missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// SavePending upserts the session's origin and destination. A cached route
// risk from an earlier selection is left untouched.
func (r *PostgresRepository) SavePending(ctx context.Context, sessionID string, req domain.PendingRouteRequest) error {
	query := `
		INSERT INTO route_sessions (session_id, origin_lat, origin_lon, dest_lat, dest_lon, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (session_id) DO UPDATE SET
			origin_lat = EXCLUDED.origin_lat,
			origin_lon = EXCLUDED.origin_lon,
			dest_lat   = EXCLUDED.dest_lat,
			dest_lon   = EXCLUDED.dest_lon,
			updated_at = now()
	`

	_, err := r.pool.Exec(ctx, query, sessionID,
		req.Origin.Latitude, req.Origin.Longitude,
		req.Destination.Latitude, req.Destination.Longitude,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save pending route: %w", err)
	}

	return nil
}

// GetPending loads the session's origin and destination
func (r *PostgresRepository) GetPending(ctx context.Context, sessionID string) (domain.PendingRouteRequest, error) {
	query := `
		SELECT origin_lat, origin_lon, dest_lat, dest_lon
		FROM route_sessions
		WHERE session_id = $1
	`

	var req domain.PendingRouteRequest
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&req.Origin.Latitude, &req.Origin.Longitude,
		&req.Destination.Latitude, &req.Destination.Longitude,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingRouteRequest{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.PendingRouteRequest{}, fmt.Errorf("postgres: failed to query pending route: %w", err)
	}

	return req, nil
}

// SaveRouteRisk stores the average risk of the session's selected route
func (r *PostgresRepository) SaveRouteRisk(ctx context.Context, sessionID string, risk float64) error {
	query := `
		UPDATE route_sessions
		SET average_risk = $2, updated_at = now()
		WHERE session_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, sessionID, risk)
	if err != nil {
		return fmt.Errorf("postgres: failed to save route risk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}

// GetRouteRisk loads the session's cached route risk
func (r *PostgresRepository) GetRouteRisk(ctx context.Context, sessionID string) (float64, bool, error) {
	query := `SELECT average_risk FROM route_sessions WHERE session_id = $1`

	var risk *float64
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(&risk)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres: failed to query route risk: %w", err)
	}
	if risk == nil {
		return 0, false, nil
	}

	return *risk, true, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
