package service

import (
	"errors"
	"math"
	"time"

	"github.com/saferoute/backend/internal/domain"
	"github.com/saferoute/backend/pkg/utils"
)

// halfDayMinutes is the largest distance from solar noon within a day
const halfDayMinutes = 720.0

var errDaylightUnavailable = errors.New("night: daylight window unavailable")

// NightFactor scores darkness as the distance of now from solar noon,
// normalized by 12 hours and rounded to 3 decimals. Solar noon is the
// midpoint of sunrise and sunset in minutes since midnight UTC; calendar
// dates are ignored.
func NightFactor(window domain.DaylightWindow, now time.Time) float64 {
	sunrise := float64(utils.MinuteOfDay(window.Sunrise.UTC()))
	sunset := float64(utils.MinuteOfDay(window.Sunset.UTC()))
	noon := (sunrise + sunset) / 2

	distance := math.Abs(float64(utils.MinuteOfDay(now.UTC())) - noon)
	return utils.RoundTo(utils.Clamp01(distance/halfDayMinutes), 3)
}
