package main

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	GDACSURL          string
	OpenMeteoURL      string
	OverpassURL       string
	GraphHopperURL    string
	GraphHopperAPIKey string
	RoutingProfile    string

	UpstreamTimeout  time.Duration
	UpstreamRetries  int
	OverpassRPS      float64
	RouteWorkers     int
	IncidentCacheTTL time.Duration
	CORSOrigins      string
}

// envReader reads typed environment values, warning about malformed ones
type envReader struct {
	logger *zap.Logger
}

func loadConfig(logger *zap.Logger) *Config {
	env := envReader{logger: logger}
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("GO_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GDACSURL:          getEnv("GDACS_URL", "https://www.gdacs.org/gdacsapi/api/events/geteventlist/EVENTS4APP"),
		OpenMeteoURL:      getEnv("OPEN_METEO_URL", "https://api.open-meteo.com/v1/forecast"),
		OverpassURL:       getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		GraphHopperURL:    getEnv("GRAPHHOPPER_URL", "https://graphhopper.com/api/1/route"),
		GraphHopperAPIKey: getEnv("GRAPHHOPPER_API_KEY", ""),
		RoutingProfile:    getEnv("ROUTING_PROFILE", "car"),

		UpstreamTimeout:  env.duration("UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamRetries:  env.integer("UPSTREAM_RETRIES", 2),
		OverpassRPS:      env.float("OVERPASS_RPS", 4),
		RouteWorkers:     env.integer("ROUTE_WORKERS", 4),
		IncidentCacheTTL: env.duration("INCIDENT_CACHE_TTL", 5*time.Minute),
		CORSOrigins:      getEnv("CORS_ORIGINS", "*"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r envReader) integer(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		r.logger.Warn("invalid integer in environment, using default",
			zap.String("key", key), zap.String("value", raw), zap.Int("default", defaultValue))
		return defaultValue
	}
	return v
}

func (r envReader) float(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		r.logger.Warn("invalid number in environment, using default",
			zap.String("key", key), zap.String("value", raw), zap.Float64("default", defaultValue))
		return defaultValue
	}
	return v
}

func (r envReader) duration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		r.logger.Warn("invalid duration in environment, using default",
			zap.String("key", key), zap.String("value", raw), zap.Duration("default", defaultValue))
		return defaultValue
	}
	return v
}
