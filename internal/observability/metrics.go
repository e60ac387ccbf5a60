package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersCreatedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideconnect", Name: "offers_created_total", Help: "Total match offers created"})
	OffersAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideconnect", Name: "offers_accepted_total", Help: "Total match offers accepted"})
	OffersDeclinedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideconnect", Name: "offers_declined_total", Help: "Total match offers declined"})
	RidesUnmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideconnect", Name: "rides_unmatched_total", Help: "Total rides left unmatched after exhausting candidates"})
	MatchLatency        = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "rideconnect", Name: "match_latency_seconds", Help: "Candidate search and scoring latency"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideconnect", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rideconnect",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
