package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
	"github.com/saferoute/backend/pkg/utils"
)

const (
	// IncidentRadiusKm bounds which events count towards a point's density
	IncidentRadiusKm = 300.0
	// severityScale maps a feed severity onto one unit of density
	severityScale = 10.0
)

// IncidentService scores proximity to disaster events from the GDACS feed
type IncidentService struct {
	feedURL  string
	up       *upstream
	cache    *ristretto.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewIncidentService creates a new incident service. A positive cacheTTL keeps
// the feed in memory for that long since it does not depend on the query point.
func NewIncidentService(feedURL string, cfg UpstreamConfig, cacheTTL time.Duration, logger *zap.Logger) (*IncidentService, error) {
	s := &IncidentService{
		feedURL:  feedURL,
		up:       newUpstream("gdacs", cfg, logger),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
	if cacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        100,
			MaxCost:            10,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, fmt.Errorf("incident: failed to create feed cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// gdacsFeed is the subset of the GDACS GeoJSON event list we rely on
type gdacsFeed struct {
	Features []struct {
		Geometry struct {
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			SeverityData *struct {
				Severity *float64 `json:"severity"`
			} `json:"severitydata"`
		} `json:"properties"`
	} `json:"features"`
}

// Events returns the current disaster events. Features without a point
// geometry or a severity are skipped.
func (s *IncidentService) Events(ctx context.Context) ([]domain.DisasterEvent, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(s.feedURL); ok {
			return cached.([]domain.DisasterEvent), nil
		}
	}

	var feed gdacsFeed
	err := s.up.doJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	}, &feed)
	if err != nil {
		return nil, fmt.Errorf("incident: failed to fetch events: %w", err)
	}
	if feed.Features == nil {
		return nil, fmt.Errorf("incident: feed has no features")
	}

	events := make([]domain.DisasterEvent, 0, len(feed.Features))
	for _, f := range feed.Features {
		var lonLat []float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &lonLat); err != nil || len(lonLat) < 2 {
			continue
		}
		if f.Properties.SeverityData == nil || f.Properties.SeverityData.Severity == nil {
			continue
		}
		events = append(events, domain.DisasterEvent{
			Location: domain.Coordinate{Latitude: lonLat[1], Longitude: lonLat[0]},
			Severity: *f.Properties.SeverityData.Severity,
		})
	}

	if s.cache != nil {
		if s.cache.SetWithTTL(s.feedURL, events, 1, s.cacheTTL) {
			s.cache.Wait()
		} else {
			s.logger.Debug("incident feed not cached", zap.String("url", s.feedURL))
		}
	}
	return events, nil
}

// IncidentDensity fetches the feed and scores it for point
func (s *IncidentService) IncidentDensity(ctx context.Context, point domain.Coordinate) (float64, error) {
	events, err := s.Events(ctx)
	if err != nil {
		return 0, err
	}
	return IncidentDensity(events, point), nil
}

// IncidentDensity sums min(severity/10, 1) over events closer than
// IncidentRadiusKm and caps the total at 1
func IncidentDensity(events []domain.DisasterEvent, point domain.Coordinate) float64 {
	score := 0.0
	for _, ev := range events {
		if math.IsNaN(ev.Severity) {
			continue
		}
		if domain.DistanceKm(point, ev.Location) < IncidentRadiusKm {
			score += utils.Clamp01(ev.Severity / severityScale)
		}
	}
	return utils.Clamp01(score)
}
