// Package metrics holds the Prometheus collectors shared by the engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// IDsIssued counts identifiers handed out by the snowflake code source.
	IDsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortener_ids_issued_total",
		Help: "Identifiers issued by the snowflake generator.",
	})

	// ClockRegressions counts Next calls rejected because the clock went backwards.
	ClockRegressions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortener_clock_regressions_total",
		Help: "ID generation attempts rejected due to clock regression.",
	})

	// Creations counts Create calls by outcome (created, invalid_url, alias_taken, ...).
	Creations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shortener_creations_total",
		Help: "Short code creations by outcome.",
	}, []string{"outcome"})

	// Resolutions counts Resolve calls by outcome (found, not_found, error).
	Resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shortener_resolutions_total",
		Help: "Short code resolutions by outcome.",
	}, []string{"outcome"})

	// CacheOperations counts cache activity. tier is "local" or "remote".
	CacheOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shortener_cache_operations_total",
		Help: "Resolution cache operations by tier and result.",
	}, []string{"tier", "result"})

	// ClicksDropped counts click events discarded because the buffer was full.
	ClicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortener_clicks_dropped_total",
		Help: "Click events dropped because the click buffer was full.",
	})

	// ClickFailures counts click sink errors.
	ClickFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortener_click_failures_total",
		Help: "Click events whose sink returned an error.",
	})

	// EventsConsumed counts analytics messages by topic and outcome
	// (handled, retry, malformed).
	EventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shortener_events_consumed_total",
		Help: "Analytics events processed by consumers.",
	}, []string{"topic", "outcome"})
)

// Register adds every collector to reg once. Later calls are no-ops.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(
			IDsIssued,
			ClockRegressions,
			Creations,
			Resolutions,
			CacheOperations,
			ClicksDropped,
			ClickFailures,
			EventsConsumed,
		)
	})
}
