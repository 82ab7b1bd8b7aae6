package directions

import "context"

// Location is a resolved trip endpoint.
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IsAirport bool    `json:"is_airport"`
}

// RouteResult is the oracle's answer for one origin/destination pair.
type RouteResult struct {
	Meters  float64 `json:"meters"`
	Seconds float64 `json:"seconds"`
}

// Miles converts the route distance to miles.
func (r RouteResult) Miles() float64 {
	return r.Meters / 1609.344
}

// Minutes converts the route duration to minutes.
func (r RouteResult) Minutes() float64 {
	return r.Seconds / 60
}

// Oracle resolves driving distance and duration between two locations.
// Failures must surface to the caller; implementations never return a silent
// zero result.
type Oracle interface {
	Route(ctx context.Context, origin, destination Location) (RouteResult, error)
}
