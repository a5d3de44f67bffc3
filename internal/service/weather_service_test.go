package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
)

func weatherServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("current_weather"))
		assert.Equal(t, "GMT", q.Get("timezone"))
		assert.Equal(t, "sunrise,sunset", q.Get("daily"))
		assert.NotEmpty(t, q.Get("latitude"))
		assert.NotEmpty(t, q.Get("longitude"))

		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWeatherService_Current(t *testing.T) {
	srv := weatherServer(t, http.StatusOK, `{
		"current_weather": {"windspeed": 45.2, "weathercode": 63},
		"daily": {"sunrise": ["2024-06-01T00:05"], "sunset": ["2024-06-01T14:40"]}
	}`)
	svc := NewWeatherService(srv.URL, testUpstreamConfig(0), zap.NewNop())

	reading, err := svc.Current(context.Background(), almaty)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, reading.Severity, 1e-9)
	assert.True(t, reading.DaylightKnown)
	assert.True(t, reading.Daylight.Sunrise.Equal(time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC)))
	assert.True(t, reading.Daylight.Sunset.Equal(time.Date(2024, 6, 1, 14, 40, 0, 0, time.UTC)))
}

func TestWeatherService_MissingDaylightUsesNow(t *testing.T) {
	srv := weatherServer(t, http.StatusOK, `{"current_weather": {"windspeed": 5, "weathercode": 0}}`)
	svc := NewWeatherService(srv.URL, testUpstreamConfig(0), zap.NewNop())
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	reading, err := svc.Current(context.Background(), almaty)
	require.NoError(t, err)
	assert.Zero(t, reading.Severity)
	assert.False(t, reading.DaylightKnown)
	assert.Equal(t, domain.NowDaylight(now), reading.Daylight)
}

func TestWeatherService_Failures(t *testing.T) {
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"bad request", http.StatusBadRequest, `{"error": true, "reason": "bad latitude"}`},
		{"no current weather", http.StatusOK, `{"daily": {"sunrise": ["2024-06-01T00:05"], "sunset": ["2024-06-01T14:40"]}}`},
		{"not json", http.StatusOK, `oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := weatherServer(t, tt.status, tt.body)
			svc := NewWeatherService(srv.URL, testUpstreamConfig(0), zap.NewNop())
			svc.now = func() time.Time { return now }

			reading, err := svc.Current(context.Background(), almaty)
			require.Error(t, err)
			assert.Zero(t, reading.Severity)
			assert.False(t, reading.DaylightKnown)
			assert.Equal(t, domain.NowDaylight(now), reading.Daylight)
		})
	}
}

func TestWeatherSeverity(t *testing.T) {
	tests := []struct {
		name string
		wind float64
		code int
		want float64
	}{
		{"calm and clear", 5, 0, 0},
		{"wind at threshold", 40, 0, 0},
		{"strong wind", 40.1, 0, 0.5},
		{"slight rain", 10, 61, 0.3},
		{"heavy rain", 10, 65, 0.3},
		{"drizzle does not count", 10, 51, 0},
		{"thunderstorm", 10, 95, 0.7},
		{"thunderstorm with hail", 10, 99, 0.7},
		{"windy rain", 60, 63, 0.8},
		{"windy thunderstorm capped", 60, 96, 1},
		{"unknown code", 0, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WeatherSeverity(tt.wind, tt.code), 1e-9)
		})
	}
}

func TestParseDaylight(t *testing.T) {
	w, ok := parseDaylight([]string{"2024-03-10T01:15"}, []string{"2024-03-10T12:45"})
	require.True(t, ok)
	assert.Equal(t, 1, w.Sunrise.Hour())
	assert.Equal(t, 45, w.Sunset.Minute())
	assert.Equal(t, time.UTC, w.Sunrise.Location())

	w, ok = parseDaylight([]string{"2024-03-10T06:15:00+05:00"}, []string{"2024-03-10T18:00:00+05:00"})
	require.True(t, ok)
	assert.Equal(t, 1, w.Sunrise.Hour())
	assert.Equal(t, 13, w.Sunset.Hour())

	_, ok = parseDaylight(nil, []string{"2024-03-10T12:45"})
	assert.False(t, ok)

	_, ok = parseDaylight([]string{"sometime"}, []string{"2024-03-10T12:45"})
	assert.False(t, ok)
}
