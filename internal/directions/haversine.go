package directions

import (
	"context"
	"math"
)

const earthRadiusMiles = 3958.8

// HaversineOracle estimates routes from straight-line distance. Used as the
// circuit breaker fallback when the mapping provider is unavailable, with a
// detour factor to approximate road distance.
type HaversineOracle struct {
	avgSpeedMph  float64
	detourFactor float64
}

// NewHaversineOracle creates the fallback estimator.
func NewHaversineOracle(avgSpeedMph float64) *HaversineOracle {
	if avgSpeedMph <= 0 {
		avgSpeedMph = 30
	}
	return &HaversineOracle{avgSpeedMph: avgSpeedMph, detourFactor: 1.3}
}

// Route implements Oracle.
func (h *HaversineOracle) Route(ctx context.Context, origin, destination Location) (RouteResult, error) {
	miles := haversineMiles(origin.Latitude, origin.Longitude, destination.Latitude, destination.Longitude) * h.detourFactor
	hours := miles / h.avgSpeedMph

	return RouteResult{
		Meters:  miles * 1609.344,
		Seconds: hours * 3600,
	}, nil
}

func haversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
