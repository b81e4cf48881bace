package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry    *prometheus.Registry
	events      *prometheus.CounterVec
	frames      prometheus.Counter
	invalid     prometheus.Counter
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on a fresh registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iaqflow_events_total",
				Help: "Total number of emitted events",
			},
			[]string{"kind", "channel"},
		),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iaqflow_frames_total",
			Help: "Total number of processed frames",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iaqflow_invalid_readings_total",
			Help: "Total number of readings that could not be evaluated",
		}),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iaqflow_runs_total",
				Help: "Total number of runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "iaqflow_run_duration_seconds",
			Help:    "Duration of engine runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	m.registry.MustRegister(
		m.events, m.frames, m.invalid, m.runs, m.runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(ctx context.Context, e *domain.Event) {
			m.events.WithLabelValues(string(e.Kind), e.Channel).Inc()
		},
		OnFrame: func(ctx context.Context, e *domain.FrameEvent) {
			m.frames.Inc()
			m.invalid.Add(float64(e.Invalid))
		},
		OnRunComplete: func(ctx context.Context, e *domain.RunEvent) {
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			m.runs.WithLabelValues(status).Inc()
			m.runDuration.Observe(e.Duration.Seconds())
		},
	}
}
