// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shortcut"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

var (
	LinksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_created_total",
		Help:      "Link creation attempts by outcome.",
	}, []string{"outcome"})

	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "code_collisions_total",
		Help:      "Generated short codes that were already taken.",
	})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolutions_total",
		Help:      "Short code resolutions by outcome.",
	}, []string{"outcome"})

	ResolverCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolver_cache_total",
		Help:      "Resolver code index lookups by result (hit or miss).",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"method", "route", "status"})
)
