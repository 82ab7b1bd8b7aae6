package directions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineOracle_KnownDistance(t *testing.T) {
	oracle := NewHaversineOracle(30)

	// JFK to LaGuardia, roughly 10.5 miles straight line
	jfk := Location{Latitude: 40.6413, Longitude: -73.7781}
	lga := Location{Latitude: 40.7769, Longitude: -73.8740}

	result, err := oracle.Route(context.Background(), jfk, lga)
	require.NoError(t, err)

	// 1.3 detour factor applied to the straight-line distance
	assert.InDelta(t, 13.6, result.Miles(), 1.0)
	assert.Greater(t, result.Seconds, 0.0)
}

func TestHaversineOracle_ZeroDistance(t *testing.T) {
	oracle := NewHaversineOracle(30)
	loc := Location{Latitude: 40.0, Longitude: -74.0}

	result, err := oracle.Route(context.Background(), loc, loc)
	require.NoError(t, err)
	assert.Zero(t, result.Meters)
}

func TestRouteResult_Conversions(t *testing.T) {
	r := RouteResult{Meters: 16093.44, Seconds: 1800}
	assert.InDelta(t, 10.0, r.Miles(), 1e-6)
	assert.InDelta(t, 30.0, r.Minutes(), 1e-6)
}
