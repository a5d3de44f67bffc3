package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saferoute/backend/internal/domain"
)

// RouteProvider returns encoded geometries of alternative routes
type RouteProvider interface {
	Alternatives(ctx context.Context, origin, destination domain.Coordinate) ([]string, error)
}

// RouteScorer is the part of RiskService the selector depends on
type RouteScorer interface {
	ScoreOrigin(ctx context.Context, origin domain.Coordinate) RouteContext
	PointRouteRisk(ctx context.Context, point domain.Coordinate, rc RouteContext) float64
}

// RouteService picks the lowest-risk alternative route and keeps the
// per-session origin/destination handoff
type RouteService struct {
	routing RouteProvider
	scorer  RouteScorer
	repo    DataRepository
	workers int
	logger  *zap.Logger

	selections metric.Int64Counter
}

// NewRouteService creates a new route service. workers bounds how many sampled
// points are scored at the same time.
func NewRouteService(routing RouteProvider, scorer RouteScorer, repo DataRepository, workers int, logger *zap.Logger) *RouteService {
	if workers < 1 {
		workers = 1
	}
	s := &RouteService{
		routing: routing,
		scorer:  scorer,
		repo:    repo,
		workers: workers,
		logger:  logger,
	}
	s.selections, _ = otel.Meter(meterName).Int64Counter("safety_route_selections_total")
	return s
}

// SetPending overwrites the session's origin and destination
func (s *RouteService) SetPending(ctx context.Context, sessionID string, req domain.PendingRouteRequest) error {
	if err := s.repo.SavePending(ctx, sessionID, req); err != nil {
		return fmt.Errorf("route: failed to save coordinates: %w", err)
	}
	return nil
}

// GetPending returns the session's origin and destination or ErrCoordinatesNotSet
func (s *RouteService) GetPending(ctx context.Context, sessionID string) (domain.PendingRouteRequest, error) {
	req, err := s.repo.GetPending(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.PendingRouteRequest{}, domain.ErrCoordinatesNotSet
	}
	if err != nil {
		return domain.PendingRouteRequest{}, fmt.Errorf("route: failed to load coordinates: %w", err)
	}
	if req.Origin.IsZero() {
		return domain.PendingRouteRequest{}, domain.ErrCoordinatesNotSet
	}
	return req, nil
}

// LastRouteRisk returns the average risk cached by the session's last
// selection, or 0 when none has run
func (s *RouteService) LastRouteRisk(ctx context.Context, sessionID string) (float64, error) {
	risk, _, err := s.repo.GetRouteRisk(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("route: failed to load route risk: %w", err)
	}
	return risk, nil
}

// FindSafestRoute scores every alternative between the session's origin and
// destination and returns the one with the lowest average risk. Incident,
// weather and night signals are taken once at the origin and held constant
// along every route; road and POI signals are looked up per sampled point.
// Any failure aborts the selection and nothing is cached.
func (s *RouteService) FindSafestRoute(ctx context.Context, sessionID string) (domain.SafestRoute, error) {
	pending, err := s.GetPending(ctx, sessionID)
	if err != nil {
		s.record(ctx, "invalid_state")
		return domain.SafestRoute{}, err
	}

	encoded, err := s.routing.Alternatives(ctx, pending.Origin, pending.Destination)
	if err != nil {
		var noRoute *domain.NoRouteError
		if errors.As(err, &noRoute) {
			s.record(ctx, "no_route")
		} else {
			s.record(ctx, "upstream_error")
		}
		return domain.SafestRoute{}, err
	}

	candidates := make([]domain.RouteCandidate, len(encoded))
	samples := make([][]domain.Coordinate, len(encoded))
	for i, e := range encoded {
		geometry, err := DecodePolyline(e)
		if err != nil {
			s.record(ctx, "upstream_error")
			return domain.SafestRoute{}, fmt.Errorf("route: candidate %d: %w", i, err)
		}
		if len(geometry) == 0 {
			s.record(ctx, "upstream_error")
			return domain.SafestRoute{}, fmt.Errorf("route: candidate %d has an empty geometry", i)
		}
		candidates[i] = domain.RouteCandidate{ID: i, Geometry: geometry}
		samples[i] = SamplePoints(geometry, RouteSampleStep)
	}

	rc := s.scorer.ScoreOrigin(ctx, pending.Origin)

	risks, err := s.scoreSamples(ctx, samples, rc)
	if err != nil {
		s.record(ctx, "upstream_error")
		return domain.SafestRoute{}, fmt.Errorf("route: failed to score candidates: %w", err)
	}

	best := 0
	for i := range candidates {
		candidates[i].AverageRisk = average(risks[i])
		if candidates[i].AverageRisk < candidates[best].AverageRisk {
			best = i
		}
	}
	winner := candidates[best]

	if err := s.repo.SaveRouteRisk(ctx, sessionID, winner.AverageRisk); err != nil {
		s.logger.Error("failed to cache route risk", zap.String("session", sessionID), zap.Error(err))
	}

	s.logger.Info("safest route selected",
		zap.String("session", sessionID),
		zap.Int("candidates", len(candidates)),
		zap.Int("route", winner.ID),
		zap.Float64("average_risk", winner.AverageRisk),
		zap.Strings("fallbacks", signalNames(rc.Fallbacks)),
	)
	s.record(ctx, "ok")

	return domain.SafestRoute{Route: winner, Candidates: len(candidates)}, nil
}

// scoreSamples scores all sampled points of all routes with at most
// s.workers points in flight
func (s *RouteService) scoreSamples(ctx context.Context, samples [][]domain.Coordinate, rc RouteContext) ([][]float64, error) {
	risks := make([][]float64, len(samples))
	for i := range samples {
		risks[i] = make([]float64, len(samples[i]))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range samples {
		for j := range samples[i] {
			i, j := i, j
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				risks[i][j] = s.scorer.PointRouteRisk(gctx, samples[i][j], rc)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return risks, nil
}

func (s *RouteService) record(ctx context.Context, outcome string) {
	s.selections.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func signalNames(signals []domain.Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = string(s)
	}
	return out
}
