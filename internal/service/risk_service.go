package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
	"github.com/saferoute/backend/pkg/utils"
)

// IncidentSource scores proximity to disaster events
type IncidentSource interface {
	IncidentDensity(ctx context.Context, point domain.Coordinate) (float64, error)
}

// WeatherSource scores current weather and reports the daylight window
type WeatherSource interface {
	Current(ctx context.Context, point domain.Coordinate) (WeatherReading, error)
}

// FeatureSource scores the map features around a point
type FeatureSource interface {
	RoadIsolation(ctx context.Context, point domain.Coordinate) (float64, error)
	PoiDensityInverse(ctx context.Context, point domain.Coordinate) (float64, error)
}

// RiskService combines the signal sources into risk scores.
// A failing source never fails the score: its default is used instead.
type RiskService struct {
	incidents IncidentSource
	weather   WeatherSource
	features  FeatureSource
	logger    *zap.Logger
	now       func() time.Time

	fallbacks metric.Int64Counter
}

// NewRiskService creates a new risk service
func NewRiskService(incidents IncidentSource, weather WeatherSource, features FeatureSource, logger *zap.Logger) *RiskService {
	s := &RiskService{
		incidents: incidents,
		weather:   weather,
		features:  features,
		logger:    logger,
		now:       time.Now,
	}
	s.fallbacks, _ = otel.Meter(meterName).Int64Counter("safety_signal_fallback_total")
	return s
}

// Combine weights the six normalized signals into one score rounded to 3 decimals
func Combine(incidentDensity, roadIsolation, weatherSeverity, poiDensityInverse, nightFactor, userReports float64) float64 {
	risk := domain.WeightIncidentDensity*incidentDensity +
		domain.WeightRoadIsolation*roadIsolation +
		domain.WeightWeatherSeverity*weatherSeverity +
		domain.WeightPoiDensityInverse*poiDensityInverse +
		domain.WeightNightFactor*nightFactor +
		domain.WeightUserReports*userReports
	return utils.RoundTo(risk, 3)
}

// RouteContext holds the signals evaluated once at a route's origin and
// reused for every sampled point of every candidate
type RouteContext struct {
	IncidentDensity float64
	WeatherSeverity float64
	NightFactor     float64
	Fallbacks       []domain.Signal
}

// PointRisk scores a single point. Incident, weather, road and POI lookups
// run concurrently; the night factor waits for the weather's daylight window.
func (s *RiskService) PointRisk(ctx context.Context, point domain.Coordinate, userReports float64) domain.RiskBreakdown {
	var (
		out domain.RiskBreakdown
		fb  fallbackSet
		wg  sync.WaitGroup
	)
	out.UserReports = userReports

	wg.Add(4)
	go func() {
		defer wg.Done()
		out.IncidentDensity = s.incidentDensity(ctx, point, &fb)
	}()
	go func() {
		defer wg.Done()
		reading, err := s.weather.Current(ctx, point)
		out.WeatherSeverity = s.resolve(ctx, domain.SignalWeatherSeverity, point, reading.Severity, err, domain.DefaultWeatherSeverity, &fb)
		out.NightFactor = s.nightFactor(ctx, point, reading, err, &fb)
	}()
	go func() {
		defer wg.Done()
		v, err := s.features.RoadIsolation(ctx, point)
		out.RoadIsolation = s.resolve(ctx, domain.SignalRoadIsolation, point, v, err, domain.DefaultRoadIsolation, &fb)
	}()
	go func() {
		defer wg.Done()
		v, err := s.features.PoiDensityInverse(ctx, point)
		out.PoiDensityInverse = s.resolve(ctx, domain.SignalPoiDensityInverse, point, v, err, domain.DefaultPoiDensityInverse, &fb)
	}()
	wg.Wait()

	out.FinalRiskScore = Combine(out.IncidentDensity, out.RoadIsolation, out.WeatherSeverity,
		out.PoiDensityInverse, out.NightFactor, out.UserReports)
	out.Fallbacks = fb.list()
	return out
}

// ScoreOrigin evaluates the route-independent signals at origin
func (s *RiskService) ScoreOrigin(ctx context.Context, origin domain.Coordinate) RouteContext {
	var (
		rc      RouteContext
		fb      fallbackSet
		wg      sync.WaitGroup
		reading WeatherReading
		wErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rc.IncidentDensity = s.incidentDensity(ctx, origin, &fb)
	}()
	go func() {
		defer wg.Done()
		reading, wErr = s.weather.Current(ctx, origin)
	}()
	wg.Wait()

	rc.WeatherSeverity = s.resolve(ctx, domain.SignalWeatherSeverity, origin, reading.Severity, wErr, domain.DefaultWeatherSeverity, &fb)
	rc.NightFactor = s.nightFactor(ctx, origin, reading, wErr, &fb)
	rc.Fallbacks = fb.list()
	return rc
}

// PointRouteRisk scores one sampled route point: roads and POIs are looked up
// at point, the remaining signals come from rc. User reports are not part of
// route scoring.
func (s *RiskService) PointRouteRisk(ctx context.Context, point domain.Coordinate, rc RouteContext) float64 {
	var (
		roads, pois float64
		fb          fallbackSet
		wg          sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		v, err := s.features.RoadIsolation(ctx, point)
		roads = s.resolve(ctx, domain.SignalRoadIsolation, point, v, err, domain.DefaultRoadIsolation, &fb)
	}()
	go func() {
		defer wg.Done()
		v, err := s.features.PoiDensityInverse(ctx, point)
		pois = s.resolve(ctx, domain.SignalPoiDensityInverse, point, v, err, domain.DefaultPoiDensityInverse, &fb)
	}()
	wg.Wait()

	return Combine(rc.IncidentDensity, roads, rc.WeatherSeverity, pois, rc.NightFactor, 0)
}

func (s *RiskService) incidentDensity(ctx context.Context, point domain.Coordinate, fb *fallbackSet) float64 {
	v, err := s.incidents.IncidentDensity(ctx, point)
	return s.resolve(ctx, domain.SignalIncidentDensity, point, v, err, domain.DefaultIncidentDensity, fb)
}

// nightFactor needs a real daylight window; a failed weather lookup or a
// synthesized window yields the night default
func (s *RiskService) nightFactor(ctx context.Context, point domain.Coordinate, reading WeatherReading, weatherErr error, fb *fallbackSet) float64 {
	if weatherErr != nil {
		return s.resolve(ctx, domain.SignalNightFactor, point, 0, weatherErr, domain.DefaultNightFactor, fb)
	}
	if !reading.DaylightKnown {
		return s.resolve(ctx, domain.SignalNightFactor, point, 0, errDaylightUnavailable, domain.DefaultNightFactor, fb)
	}
	return NightFactor(reading.Daylight, s.now())
}

// resolve returns value clamped to [0,1], or def when err is set
func (s *RiskService) resolve(ctx context.Context, signal domain.Signal, point domain.Coordinate, value float64, err error, def float64, fb *fallbackSet) float64 {
	if err == nil {
		return utils.Clamp01(value)
	}
	s.logger.Warn("signal unavailable, using default",
		zap.String("signal", string(signal)),
		zap.Float64("lat", point.Latitude),
		zap.Float64("lon", point.Longitude),
		zap.Float64("default", def),
		zap.Error(err),
	)
	s.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("signal", string(signal))))
	fb.add(signal)
	return def
}

// fallbackSet collects, in a fixed order, the signals that used their default
type fallbackSet struct {
	mu  sync.Mutex
	set map[domain.Signal]bool
}

var signalOrder = []domain.Signal{
	domain.SignalIncidentDensity,
	domain.SignalRoadIsolation,
	domain.SignalWeatherSeverity,
	domain.SignalPoiDensityInverse,
	domain.SignalNightFactor,
}

func (f *fallbackSet) add(signal domain.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set == nil {
		f.set = make(map[domain.Signal]bool)
	}
	f.set[signal] = true
}

func (f *fallbackSet) list() []domain.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Signal
	for _, s := range signalOrder {
		if f.set[s] {
			out = append(out, s)
		}
	}
	return out
}
