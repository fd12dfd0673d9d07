package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "secantmin"

// Outcome labels besides the engine error kinds.
const (
	OutcomeConverged      = "converged"
	OutcomeIterationLimit = "iteration_limit"
	OutcomeBadRequest     = "bad_request"
)

// Metrics holds the collectors for minimize requests on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	iterations     prometheus.Histogram
	duration       prometheus.Histogram
	renderFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "minimize_requests_total",
			Help:      "Minimize requests by outcome: converged, iteration_limit, bad_request or an error kind.",
		}, []string{"outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "minimize_iterations",
			Help:      "Secant iterations per successful minimize request.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "minimize_duration_seconds",
			Help:      "Wall time of minimize requests including graph rendering.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Final graphs that could not be rendered.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.iterations,
		m.duration,
		m.renderFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveMinimize records one request. iterations is ignored when negative.
func (m *Metrics) ObserveMinimize(outcome string, iterations int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	if iterations >= 0 {
		m.iterations.Observe(float64(iterations))
	}
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) RenderFailed() {
	if m == nil {
		return
	}
	m.renderFailures.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
