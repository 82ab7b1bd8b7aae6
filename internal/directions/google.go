package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/statelyrides/chauffeur/pkg/config"
	"github.com/statelyrides/chauffeur/pkg/httpclient"
)

const (
	googleMapsBaseURL        = "https://maps.googleapis.com/maps/api"
	googleDirectionsEndpoint = "/directions/json"
)

// GoogleOracle resolves routes through the Google Directions API.
type GoogleOracle struct {
	apiKey string
	client *httpclient.Client
}

// NewGoogleOracle creates a Google-backed route oracle.
func NewGoogleOracle(cfg *config.DirectionsConfig) *GoogleOracle {
	baseURL := cfg.GoogleBaseURL
	if baseURL == "" {
		baseURL = googleMapsBaseURL
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}

	return &GoogleOracle{
		apiKey: cfg.GoogleAPIKey,
		client: httpclient.NewClient(baseURL, time.Duration(timeout)*time.Second, httpclient.WithDefaultRetry()),
	}
}

type googleDirectionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"` // seconds
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// Route implements Oracle.
func (g *GoogleOracle) Route(ctx context.Context, origin, destination Location) (RouteResult, error) {
	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	params.Set("destination", fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude))
	params.Set("mode", "driving")
	params.Set("departure_time", "now")
	params.Set("key", g.apiKey)

	resp, err := g.client.Get(ctx, googleDirectionsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return RouteResult{}, fmt.Errorf("directions request failed: %w", err)
	}

	var parsed googleDirectionsResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return RouteResult{}, fmt.Errorf("failed to parse directions response: %w", err)
	}

	if parsed.Status != "OK" {
		return RouteResult{}, fmt.Errorf("directions API error: %s %s", parsed.Status, parsed.ErrorMessage)
	}
	if len(parsed.Routes) == 0 || len(parsed.Routes[0].Legs) == 0 {
		return RouteResult{}, fmt.Errorf("directions API returned no routes")
	}

	var result RouteResult
	for _, leg := range parsed.Routes[0].Legs {
		result.Meters += leg.Distance.Value
		result.Seconds += leg.Duration.Value
	}

	return result, nil
}
