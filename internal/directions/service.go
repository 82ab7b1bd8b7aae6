package directions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/pkg/logger"
	"github.com/statelyrides/chauffeur/pkg/resilience"
)

// Service fronts the route oracle with a circuit breaker. When the primary
// provider trips the breaker, routes are estimated with the haversine
// fallback so quoting stays available during a mapping outage.
type Service struct {
	primary  Oracle
	fallback Oracle
	breaker  *resilience.CircuitBreaker
}

// NewService wires the primary oracle and the haversine fallback.
func NewService(primary Oracle, fallback Oracle) *Service {
	s := &Service{primary: primary, fallback: fallback}
	s.breaker = resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "directions",
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}, nil)
	return s
}

// Route implements Oracle.
func (s *Service) Route(ctx context.Context, origin, destination Location) (RouteResult, error) {
	result, err := s.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return s.primary.Route(ctx, origin, destination)
	})
	if err == nil {
		return result.(RouteResult), nil
	}

	if s.fallback == nil {
		return RouteResult{}, err
	}

	logger.WithContext(ctx).Warn("primary route oracle failed, using haversine estimate", zap.Error(err))
	return s.fallback.Route(ctx, origin, destination)
}
