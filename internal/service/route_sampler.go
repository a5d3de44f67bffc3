package service

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/saferoute/backend/internal/domain"
)

const (
	// RouteSampleStep keeps every 20th decoded point for scoring
	RouteSampleStep   = 20
	polylinePrecision = 1e5
)

var errTruncatedPolyline = errors.New("truncated polyline")

// DecodePolyline decodes a 1e-5 precision encoded polyline
func DecodePolyline(encoded string) ([]domain.Coordinate, error) {
	points := make([]domain.Coordinate, 0, len(encoded)/4)
	index, lat, lon := 0, 0, 0

	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, fmt.Errorf("polyline: latitude at offset %d: %w", index, err)
		}
		dLon, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, fmt.Errorf("polyline: longitude at offset %d: %w", index, err)
		}
		index = next
		lat += dLat
		lon += dLon

		points = append(points, domain.Coordinate{
			Latitude:  float64(lat) / polylinePrecision,
			Longitude: float64(lon) / polylinePrecision,
		})
	}

	return points, nil
}

func decodeValue(encoded string, index int) (int, int, error) {
	shift, result := 0, 0
	for {
		if index >= len(encoded) {
			return 0, index, errTruncatedPolyline
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, fmt.Errorf("invalid character %q", encoded[index])
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
		if shift > 60 {
			return 0, index, errors.New("value overflow")
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// EncodePolyline is the inverse of DecodePolyline
func EncodePolyline(points []domain.Coordinate) string {
	var sb strings.Builder
	prevLat, prevLon := 0, 0
	for _, p := range points {
		lat := int(math.Round(p.Latitude * polylinePrecision))
		lon := int(math.Round(p.Longitude * polylinePrecision))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}

// SamplePoints keeps every step-th point starting with the first, so the
// result has ceil(len(points)/step) entries in the original order
func SamplePoints(points []domain.Coordinate, step int) []domain.Coordinate {
	if step <= 1 {
		return append([]domain.Coordinate(nil), points...)
	}
	sampled := make([]domain.Coordinate, 0, (len(points)+step-1)/step)
	for i := 0; i < len(points); i += step {
		sampled = append(sampled, points[i])
	}
	return sampled
}
