package domain

// Signal names one independently scored risk dimension
type Signal string

const (
	SignalIncidentDensity   Signal = "incidentDensity"
	SignalWeatherSeverity   Signal = "weatherSeverity"
	SignalRoadIsolation     Signal = "roadIsolation"
	SignalPoiDensityInverse Signal = "poiDensityInverse"
	SignalNightFactor       Signal = "nightFactor"
)

// Fallback values substituted when a signal's upstream is unavailable
const (
	DefaultIncidentDensity   = 0.0
	DefaultWeatherSeverity   = 0.0
	DefaultRoadIsolation     = 0.5
	DefaultPoiDensityInverse = 0.5
	DefaultNightFactor       = 0.5
)

// Weights of the linear risk combination. They sum to 1.
const (
	WeightIncidentDensity   = 0.35
	WeightRoadIsolation     = 0.20
	WeightWeatherSeverity   = 0.10
	WeightPoiDensityInverse = 0.15
	WeightNightFactor       = 0.10
	WeightUserReports       = 0.10
)

// RiskBreakdown is the per-signal view of a point risk score
type RiskBreakdown struct {
	IncidentDensity   float64  `json:"incidentDensity"`
	RoadIsolation     float64  `json:"roadIsolation"`
	WeatherSeverity   float64  `json:"weatherSeverity"`
	PoiDensityInverse float64  `json:"poiDensityInverse"`
	NightFactor       float64  `json:"nightFactor"`
	UserReports       float64  `json:"userReports"`
	FinalRiskScore    float64  `json:"finalRiskScore"`
	Fallbacks         []Signal `json:"fallbacks,omitempty"`
}

// DisasterEvent is one entry of the disaster-event feed
type DisasterEvent struct {
	Location Coordinate `json:"location"`
	Severity float64    `json:"severity"`
}
