// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsRecorded counts stored attendance events.
	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Name:      "events_recorded_total",
		Help:      "Attendance events stored, by category and action.",
	}, []string{"category", "action"})

	// StatusLookups counts resolved statuses, including unknown.
	StatusLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Name:      "status_lookups_total",
		Help:      "Attendance status lookups, by resulting state.",
	}, []string{"state"})

	// SourceFailures counts failed calls to the event store or directory.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Name:      "source_failures_total",
		Help:      "Failed reads or writes against the backing store, by operation.",
	}, []string{"operation"})

	// EventsPublished counts recorded events fanned out by the worker.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Name:      "events_published_total",
		Help:      "Recorded events published downstream, by result.",
	}, []string{"result"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checkin",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})
)
