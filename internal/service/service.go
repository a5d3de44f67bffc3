package service

import (
	"github.com/saferoute/backend/internal/domain"
)

// DataRepository is re-exported from domain for convenience
type DataRepository = domain.SessionRepository

var (
	_ IncidentSource = (*IncidentService)(nil)
	_ WeatherSource  = (*WeatherService)(nil)
	_ FeatureSource  = (*OverpassService)(nil)
	_ RouteProvider  = (*RoutingService)(nil)
	_ RouteScorer    = (*RiskService)(nil)
)
