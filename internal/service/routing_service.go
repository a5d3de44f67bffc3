package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
)

// RoutingService handles communication with the GraphHopper routing API
type RoutingService struct {
	serviceURL string
	apiKey     string
	profile    string
	up         *upstream
}

// NewRoutingService creates a new routing client
func NewRoutingService(serviceURL, apiKey, profile string, cfg UpstreamConfig, logger *zap.Logger) *RoutingService {
	if profile == "" {
		profile = "car"
	}
	return &RoutingService{
		serviceURL: serviceURL,
		apiKey:     apiKey,
		profile:    profile,
		up:         newUpstream("graphhopper", cfg, logger),
	}
}

type routeRequest struct {
	Points        [][2]float64 `json:"points"`
	Profile       string       `json:"profile"`
	Algorithm     string       `json:"algorithm"`
	PointsEncoded bool         `json:"points_encoded"`
	Instructions  bool         `json:"instructions"`
}

type routeResponse struct {
	Message string `json:"message"`
	Paths   []struct {
		Points   string  `json:"points"`
		Distance float64 `json:"distance"`
		Time     int64   `json:"time"`
	} `json:"paths"`
}

// Alternatives returns the encoded geometries of the alternative routes
// between origin and destination. A *domain.NoRouteError is returned when the
// provider reports no usable paths.
func (b *RoutingService) Alternatives(ctx context.Context, origin, destination domain.Coordinate) ([]string, error) {
	body, err := json.Marshal(routeRequest{
		Points: [][2]float64{
			{origin.Longitude, origin.Latitude},
			{destination.Longitude, destination.Latitude},
		},
		Profile:       b.profile,
		Algorithm:     "alternative_route",
		PointsEncoded: true,
	})
	if err != nil {
		return nil, fmt.Errorf("routing: failed to marshal request: %w", err)
	}

	endpoint := b.serviceURL
	if b.apiKey != "" {
		endpoint += "?" + url.Values{"key": {b.apiKey}}.Encode()
	}

	var resp routeResponse
	err = b.up.doJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && isNoRouteStatus(statusErr.Code) {
			return nil, &domain.NoRouteError{Message: providerMessage(statusErr.Body)}
		}
		return nil, fmt.Errorf("routing: failed to fetch alternatives: %w", err)
	}

	geometries := make([]string, 0, len(resp.Paths))
	for _, p := range resp.Paths {
		if p.Points != "" {
			geometries = append(geometries, p.Points)
		}
	}
	if len(geometries) == 0 {
		msg := resp.Message
		if msg == "" {
			msg = "routing provider returned no paths"
		}
		return nil, &domain.NoRouteError{Message: msg}
	}
	return geometries, nil
}

func isNoRouteStatus(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusNotFound || code == http.StatusUnprocessableEntity
}

func providerMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return "routing provider rejected the request"
}
