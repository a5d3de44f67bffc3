package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
	"github.com/saferoute/backend/pkg/utils"
)

// Weather severity contributions
const (
	strongWindKmh       = 40.0
	strongWindScore     = 0.5
	rainScore           = 0.3
	thunderstormScore   = 0.7
	openMeteoTimeLayout = "2006-01-02T15:04"
)

// WMO weather codes
var (
	rainCodes         = map[int]bool{61: true, 63: true, 65: true}
	thunderstormCodes = map[int]bool{95: true, 96: true, 99: true}
)

// WeatherService handles weather data fetching from Open-Meteo
type WeatherService struct {
	baseURL string
	up      *upstream
	now     func() time.Time
}

// NewWeatherService creates a new weather service
func NewWeatherService(baseURL string, cfg UpstreamConfig, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		baseURL: baseURL,
		up:      newUpstream("open-meteo", cfg, logger),
		now:     time.Now,
	}
}

// OpenMeteoResponse represents the Open-Meteo forecast API response
type OpenMeteoResponse struct {
	CurrentWeather *struct {
		WindSpeed   *float64 `json:"windspeed"`
		WeatherCode *float64 `json:"weathercode"`
	} `json:"current_weather"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// WeatherReading is the weather signal together with the day's daylight window.
// DaylightKnown is false when the window was synthesized as "now".
type WeatherReading struct {
	Severity      float64
	Daylight      domain.DaylightWindow
	DaylightKnown bool
}

// Current fetches current weather for point and scores it
func (s *WeatherService) Current(ctx context.Context, point domain.Coordinate) (WeatherReading, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(point.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(point.Longitude, 'f', -1, 64))
	q.Set("current_weather", "true")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "GMT")
	endpoint := s.baseURL + "?" + q.Encode()

	var resp OpenMeteoResponse
	err := s.up.doJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, &resp)
	if err != nil {
		return WeatherReading{Daylight: domain.NowDaylight(s.now())}, fmt.Errorf("weather: failed to fetch forecast: %w", err)
	}
	if resp.CurrentWeather == nil {
		return WeatherReading{Daylight: domain.NowDaylight(s.now())}, fmt.Errorf("weather: response has no current_weather")
	}

	var wind float64
	if resp.CurrentWeather.WindSpeed != nil {
		wind = *resp.CurrentWeather.WindSpeed
	}
	code := -1
	if resp.CurrentWeather.WeatherCode != nil {
		code = int(*resp.CurrentWeather.WeatherCode)
	}

	reading := WeatherReading{Severity: WeatherSeverity(wind, code)}
	reading.Daylight, reading.DaylightKnown = parseDaylight(resp.Daily.Sunrise, resp.Daily.Sunset)
	if !reading.DaylightKnown {
		reading.Daylight = domain.NowDaylight(s.now())
	}
	return reading, nil
}

// WeatherSeverity scores wind speed (km/h) and a WMO weather code
func WeatherSeverity(windSpeed float64, code int) float64 {
	score := 0.0
	if windSpeed > strongWindKmh {
		score += strongWindScore
	}
	if rainCodes[code] {
		score += rainScore
	}
	if thunderstormCodes[code] {
		score += thunderstormScore
	}
	return utils.Clamp01(score)
}

// parseDaylight reads the first day's sunrise and sunset as UTC
func parseDaylight(sunrise, sunset []string) (domain.DaylightWindow, bool) {
	if len(sunrise) == 0 || len(sunset) == 0 {
		return domain.DaylightWindow{}, false
	}
	rise, err := parseForecastTime(sunrise[0])
	if err != nil {
		return domain.DaylightWindow{}, false
	}
	set, err := parseForecastTime(sunset[0])
	if err != nil {
		return domain.DaylightWindow{}, false
	}
	return domain.DaylightWindow{Sunrise: rise, Sunset: set}, true
}

func parseForecastTime(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(openMeteoTimeLayout, value, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
