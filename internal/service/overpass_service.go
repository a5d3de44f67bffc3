package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
	"github.com/saferoute/backend/pkg/utils"
)

const (
	// FeatureRadiusMeters is the search radius for roads and amenities
	FeatureRadiusMeters = 500
	// roadSaturation is the road count at which isolation reaches 0
	roadSaturation = 50.0
	// amenitySaturation is the amenity count at which the inverse density reaches 0
	amenitySaturation = 30.0
)

// OverpassService counts OpenStreetMap features around a point
type OverpassService struct {
	endpoint string
	up       *upstream
}

// NewOverpassService creates a new Overpass service. cfg.RatePerSecond
// protects the public Overpass instance from route fan-out bursts.
func NewOverpassService(endpoint string, cfg UpstreamConfig, logger *zap.Logger) *OverpassService {
	return &OverpassService{
		endpoint: endpoint,
		up:       newUpstream("overpass", cfg, logger),
	}
}

type overpassResponse struct {
	Elements *[]json.RawMessage `json:"elements"`
}

// CountRoads returns the number of highway ways within FeatureRadiusMeters
func (s *OverpassService) CountRoads(ctx context.Context, point domain.Coordinate) (int, error) {
	return s.count(ctx, fmt.Sprintf(`way(around:%d,%s,%s)["highway"];`,
		FeatureRadiusMeters, formatDeg(point.Latitude), formatDeg(point.Longitude)))
}

// CountAmenities returns the number of amenity nodes within FeatureRadiusMeters
func (s *OverpassService) CountAmenities(ctx context.Context, point domain.Coordinate) (int, error) {
	return s.count(ctx, fmt.Sprintf(`node(around:%d,%s,%s)["amenity"];`,
		FeatureRadiusMeters, formatDeg(point.Latitude), formatDeg(point.Longitude)))
}

// RoadIsolation scores how few roads surround point
func (s *OverpassService) RoadIsolation(ctx context.Context, point domain.Coordinate) (float64, error) {
	n, err := s.CountRoads(ctx, point)
	if err != nil {
		return 0, err
	}
	return RoadIsolationScore(n), nil
}

// PoiDensityInverse scores how few amenities surround point
func (s *OverpassService) PoiDensityInverse(ctx context.Context, point domain.Coordinate) (float64, error) {
	n, err := s.CountAmenities(ctx, point)
	if err != nil {
		return 0, err
	}
	return PoiDensityInverseScore(n), nil
}

func (s *OverpassService) count(ctx context.Context, statement string) (int, error) {
	query := "[out:json][timeout:25];(" + statement + ");out ids;"
	form := url.Values{"data": {query}}.Encode()

	var resp overpassResponse
	err := s.up.doJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("overpass: failed to count features: %w", err)
	}
	if resp.Elements == nil {
		return 0, fmt.Errorf("overpass: response has no elements")
	}
	return len(*resp.Elements), nil
}

// RoadIsolationScore is 1 - min(count/50, 1)
func RoadIsolationScore(count int) float64 {
	return utils.Clamp01(1 - utils.Clamp01(float64(count)/roadSaturation))
}

// PoiDensityInverseScore is 1 - min(count/30, 1)
func PoiDensityInverseScore(count int) float64 {
	return utils.Clamp01(1 - utils.Clamp01(float64(count)/amenitySaturation))
}

func formatDeg(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
