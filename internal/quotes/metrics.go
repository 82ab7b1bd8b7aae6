package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	composeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_compose_total",
		Help: "Total number of quote compositions attempted",
	}, []string{"service_type", "outcome"})

	composeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quote_compose_duration_seconds",
		Help:    "Duration of quote composition including route resolution",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"service_type"})
)
