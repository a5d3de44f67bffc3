package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
)

var errUpstreamDown = errors.New("upstream down")

type fakeIncidents struct {
	value float64
	err   error
}

func (f fakeIncidents) IncidentDensity(context.Context, domain.Coordinate) (float64, error) {
	return f.value, f.err
}

type fakeWeather struct {
	reading WeatherReading
	err     error
}

func (f fakeWeather) Current(context.Context, domain.Coordinate) (WeatherReading, error) {
	return f.reading, f.err
}

type fakeFeatures struct {
	roads func(domain.Coordinate) (float64, error)
	pois  func(domain.Coordinate) (float64, error)
}

func (f fakeFeatures) RoadIsolation(_ context.Context, p domain.Coordinate) (float64, error) {
	return f.roads(p)
}

func (f fakeFeatures) PoiDensityInverse(_ context.Context, p domain.Coordinate) (float64, error) {
	return f.pois(p)
}

func constant(v float64, err error) func(domain.Coordinate) (float64, error) {
	return func(domain.Coordinate) (float64, error) { return v, err }
}

// noonDaylight is a 06:00-18:00 UTC window; at(12, 0) scores a night factor of 0
var noonDaylight = domain.DaylightWindow{Sunrise: at(6, 0), Sunset: at(18, 0)}

func newTestRiskService(incidents IncidentSource, weather WeatherSource, features FeatureSource, now time.Time) *RiskService {
	s := NewRiskService(incidents, weather, features, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func downRiskService() *RiskService {
	return newTestRiskService(
		fakeIncidents{err: errUpstreamDown},
		fakeWeather{reading: WeatherReading{Daylight: domain.NowDaylight(at(3, 0))}, err: errUpstreamDown},
		fakeFeatures{roads: constant(0, errUpstreamDown), pois: constant(0, errUpstreamDown)},
		at(3, 0),
	)
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name                   string
		id, ri, ws, pi, nf, ur float64
		want                   float64
	}{
		{"all zero", 0, 0, 0, 0, 0, 0, 0},
		{"all one", 1, 1, 1, 1, 1, 1, 1},
		{"incidents only", 1, 0, 0, 0, 0, 0, 0.35},
		{"roads only", 0, 1, 0, 0, 0, 0, 0.2},
		{"user reports only", 0, 0, 0, 0, 0, 1, 0.1},
		{"all half", 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{"mixed", 0.4, 0.2, 0.3, 0.1, 0, 0.5, 0.275},
		{"rounded", 0.3333, 0, 0, 0, 0, 0, 0.117},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Combine(tt.id, tt.ri, tt.ws, tt.pi, tt.nf, tt.ur), 1e-9)
		})
	}
}

func TestRiskService_PointRisk(t *testing.T) {
	svc := newTestRiskService(
		fakeIncidents{value: 0.4},
		fakeWeather{reading: WeatherReading{Severity: 0.3, Daylight: noonDaylight, DaylightKnown: true}},
		fakeFeatures{roads: constant(0.2, nil), pois: constant(0.1, nil)},
		at(12, 0),
	)

	got := svc.PointRisk(context.Background(), almaty, 0.5)

	assert.InDelta(t, 0.4, got.IncidentDensity, 1e-9)
	assert.InDelta(t, 0.2, got.RoadIsolation, 1e-9)
	assert.InDelta(t, 0.3, got.WeatherSeverity, 1e-9)
	assert.InDelta(t, 0.1, got.PoiDensityInverse, 1e-9)
	assert.Zero(t, got.NightFactor)
	assert.Equal(t, 0.5, got.UserReports)
	assert.InDelta(t, 0.275, got.FinalRiskScore, 1e-9)
	assert.Empty(t, got.Fallbacks)
}

func TestRiskService_PointRiskAllUpstreamsDown(t *testing.T) {
	got := downRiskService().PointRisk(context.Background(), almaty, 0)

	assert.Equal(t, domain.DefaultIncidentDensity, got.IncidentDensity)
	assert.Equal(t, domain.DefaultWeatherSeverity, got.WeatherSeverity)
	assert.Equal(t, domain.DefaultRoadIsolation, got.RoadIsolation)
	assert.Equal(t, domain.DefaultPoiDensityInverse, got.PoiDensityInverse)
	assert.Equal(t, domain.DefaultNightFactor, got.NightFactor)
	assert.InDelta(t, 0.225, got.FinalRiskScore, 1e-9)
	assert.Equal(t, []domain.Signal{
		domain.SignalIncidentDensity,
		domain.SignalRoadIsolation,
		domain.SignalWeatherSeverity,
		domain.SignalPoiDensityInverse,
		domain.SignalNightFactor,
	}, got.Fallbacks)
}

func TestRiskService_PointRiskPartialOutage(t *testing.T) {
	svc := newTestRiskService(
		fakeIncidents{value: 0.2},
		fakeWeather{reading: WeatherReading{Severity: 0.7, Daylight: noonDaylight, DaylightKnown: true}},
		fakeFeatures{roads: constant(0, errUpstreamDown), pois: constant(0.4, nil)},
		at(0, 0),
	)

	got := svc.PointRisk(context.Background(), almaty, 0)

	assert.Equal(t, domain.DefaultRoadIsolation, got.RoadIsolation)
	assert.InDelta(t, 0.4, got.PoiDensityInverse, 1e-9)
	assert.Equal(t, 1.0, got.NightFactor)
	assert.Equal(t, []domain.Signal{domain.SignalRoadIsolation}, got.Fallbacks)
}

func TestRiskService_UnknownDaylightFallsBack(t *testing.T) {
	svc := newTestRiskService(
		fakeIncidents{},
		fakeWeather{reading: WeatherReading{Severity: 0.3, Daylight: domain.NowDaylight(at(12, 0))}},
		fakeFeatures{roads: constant(0, nil), pois: constant(0, nil)},
		at(12, 0),
	)

	got := svc.PointRisk(context.Background(), almaty, 0)

	assert.InDelta(t, 0.3, got.WeatherSeverity, 1e-9)
	assert.Equal(t, domain.DefaultNightFactor, got.NightFactor)
	assert.Equal(t, []domain.Signal{domain.SignalNightFactor}, got.Fallbacks)
}

func TestRiskService_ClampsSignals(t *testing.T) {
	svc := newTestRiskService(
		fakeIncidents{value: 3.5},
		fakeWeather{reading: WeatherReading{Severity: -1, Daylight: noonDaylight, DaylightKnown: true}},
		fakeFeatures{roads: constant(1.2, nil), pois: constant(-0.1, nil)},
		at(12, 0),
	)

	got := svc.PointRisk(context.Background(), almaty, 0)

	assert.Equal(t, 1.0, got.IncidentDensity)
	assert.Equal(t, 0.0, got.WeatherSeverity)
	assert.Equal(t, 1.0, got.RoadIsolation)
	assert.Equal(t, 0.0, got.PoiDensityInverse)
}

func TestRiskService_ScoreOrigin(t *testing.T) {
	svc := newTestRiskService(
		fakeIncidents{value: 0.4},
		fakeWeather{reading: WeatherReading{Severity: 0.3, Daylight: noonDaylight, DaylightKnown: true}},
		fakeFeatures{roads: constant(0, nil), pois: constant(0, nil)},
		at(15, 0),
	)

	rc := svc.ScoreOrigin(context.Background(), almaty)
	assert.InDelta(t, 0.4, rc.IncidentDensity, 1e-9)
	assert.InDelta(t, 0.3, rc.WeatherSeverity, 1e-9)
	assert.InDelta(t, 0.25, rc.NightFactor, 1e-9)
	assert.Empty(t, rc.Fallbacks)

	rc = downRiskService().ScoreOrigin(context.Background(), almaty)
	assert.Equal(t, RouteContext{
		IncidentDensity: domain.DefaultIncidentDensity,
		WeatherSeverity: domain.DefaultWeatherSeverity,
		NightFactor:     domain.DefaultNightFactor,
		Fallbacks: []domain.Signal{
			domain.SignalIncidentDensity,
			domain.SignalWeatherSeverity,
			domain.SignalNightFactor,
		},
	}, rc)
}

func TestRiskService_PointRouteRisk(t *testing.T) {
	svc := newTestRiskService(
		fakeIncidents{err: errUpstreamDown},
		fakeWeather{err: errUpstreamDown},
		fakeFeatures{roads: constant(0.2, nil), pois: constant(0.1, nil)},
		at(12, 0),
	)
	rc := RouteContext{IncidentDensity: 0.4, WeatherSeverity: 0.3}

	// origin signals come from rc, so the failing sources are never consulted
	assert.InDelta(t, 0.225, svc.PointRouteRisk(context.Background(), almaty, rc), 1e-9)

	svc.features = fakeFeatures{roads: constant(0, errUpstreamDown), pois: constant(0, errUpstreamDown)}
	// 0.35*0.4 + 0.2*0.5 + 0.1*0.3 + 0.15*0.5
	assert.InDelta(t, 0.345, svc.PointRouteRisk(context.Background(), almaty, rc), 1e-9)
}
