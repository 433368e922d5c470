// Package metrics exposes Prometheus collectors for the submission pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signchat"

// Collector records submission outcomes and generation latency.
type Collector struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	latency     prometheus.Histogram
	inFlight    prometheus.Gauge
}

// New creates a Collector registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions by outcome kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting on the generation service.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generations_in_flight",
			Help:      "Generation requests currently outstanding.",
		}),
	}

	c.registry.MustRegister(c.submissions, c.latency, c.inFlight)
	return c
}

// Outcome counts one settled submission of the given kind.
func (c *Collector) Outcome(kind string) {
	c.submissions.WithLabelValues(kind).Inc()
}

// GenerationStarted marks a request to the generation service as outstanding.
func (c *Collector) GenerationStarted() {
	c.inFlight.Inc()
}

// GenerationFinished records how long a request took and clears it from
// the in-flight gauge.
func (c *Collector) GenerationFinished(elapsed time.Duration) {
	c.inFlight.Dec()
	c.latency.Observe(elapsed.Seconds())
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
