// Package metrics exposes the Prometheus collectors for the FIREWHEEL
// core, following the same shape as cuemby-warren's pkg/metrics: package
// level collectors registered once in init, a Timer helper, and a
// Handler for mounting on an HTTP mux.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EntitiesResolved counts entities the resolver placed into the
	// final ordered list, per experiment.
	EntitiesResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "firewheel_resolver_entities_resolved_total",
		Help: "Total number of model component entities resolved into an ordered list.",
	})

	ResolverFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewheel_resolver_failures_total",
			Help: "Total number of resolver failures by kind.",
		},
		[]string{"kind"},
	)

	ResolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "firewheel_resolver_resolve_duration_seconds",
		Help:    "Time to produce a canonical ordered entity list.",
		Buckets: prometheus.DefBuckets,
	})

	GraphBuildComponentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firewheel_graphbuilder_component_duration_seconds",
			Help:    "Time spent invoking a single component's plugin.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	GraphBuildComponentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewheel_graphbuilder_component_errors_total",
			Help: "Total number of components whose plugin invocation failed.",
		},
		[]string{"component"},
	)

	ScheduleEntriesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewheel_executor_entries_executed_total",
			Help: "Total number of schedule entries executed by the agent, by kind.",
		},
		[]string{"vm", "kind"},
	)

	RebootsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewheel_executor_reboots_total",
			Help: "Total number of reboots detected by the agent, by source.",
		},
		[]string{"vm", "source"},
	)

	VMMappingsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "firewheel_coordsvc_vm_mappings",
			Help: "Current number of VM mappings by state.",
		},
		[]string{"state"},
	)

	ObjectStorePuts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firewheel_objectstore_puts_total",
			Help: "Total number of object store puts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		EntitiesResolved,
		ResolverFailuresTotal,
		ResolveDuration,
		GraphBuildComponentDuration,
		GraphBuildComponentErrors,
		ScheduleEntriesExecuted,
		RebootsTotal,
		VMMappingsByState,
		ObjectStorePuts,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration for later histogram recording.
type Timer struct {
	start time.Time
}

// NewTimer starts a new Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time against histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time against a histogram vec
// member selected by labelValues.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labelValues ...string) {
	histogram.WithLabelValues(labelValues...).Observe(time.Since(t.start).Seconds())
}
