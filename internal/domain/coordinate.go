package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/saferoute/backend/pkg/utils"
)

// Coordinate is a WGS84 point
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate checks the coordinate lies within geographic bounds
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// IsZero reports whether c is the default (0, 0) coordinate
func (c Coordinate) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// Pair returns the coordinate as a [lat, lon] pair for JSON responses
func (c Coordinate) Pair() [2]float64 {
	return [2]float64{c.Latitude, c.Longitude}
}

// DistanceKm returns the great-circle distance between a and b
func DistanceKm(a, b Coordinate) float64 {
	return utils.Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// DaylightWindow holds the day's sunrise and sunset in UTC
type DaylightWindow struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// NowDaylight is the stand-in window used when the real one is unavailable:
// sunrise and sunset both equal now.
func NowDaylight(now time.Time) DaylightWindow {
	now = now.UTC()
	return DaylightWindow{Sunrise: now, Sunset: now}
}
