// Package metrics holds the planner's Prometheus collectors. Collectors
// live on a private registry so tests and embedders never collide with the
// global one.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics is the set of collectors shared by the planner components.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GeneratorCalls    *prometheus.CounterVec
	GeneratorDuration prometheus.Histogram
	DocsRequests      *prometheus.CounterVec
	RegistryLookups   *prometheus.CounterVec
	StoreMutations    *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GeneratorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "generator",
			Name:      "invocations_total",
			Help:      "Generator CLI invocations by outcome.",
		}, []string{"outcome"}),
		GeneratorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "planner",
			Subsystem: "generator",
			Name:      "invocation_seconds",
			Help:      "Wall time of generator CLI invocations.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}),
		DocsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "docs",
			Name:      "requests_total",
			Help:      "Documentation service calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		RegistryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Package registry dist-tag lookups by outcome.",
		}, []string{"outcome"}),
		StoreMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Context store mutations by event type.",
		}, []string{"event"}),
	}
	m.registry.MustRegister(
		m.GeneratorCalls,
		m.GeneratorDuration,
		m.DocsRequests,
		m.RegistryLookups,
		m.StoreMutations,
	)
	return m
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveGenerator records one generator invocation.
func (m *Metrics) ObserveGenerator(start time.Time, err error) {
	if m == nil {
		return
	}
	m.GeneratorCalls.WithLabelValues(outcome(err)).Inc()
	m.GeneratorDuration.Observe(time.Since(start).Seconds())
}

// ObserveDocs records one documentation service call.
func (m *Metrics) ObserveDocs(tool string, err error) {
	if m == nil {
		return
	}
	m.DocsRequests.WithLabelValues(tool, outcome(err)).Inc()
}

// ObserveRegistry records one registry lookup.
func (m *Metrics) ObserveRegistry(err error) {
	if m == nil {
		return
	}
	m.RegistryLookups.WithLabelValues(outcome(err)).Inc()
}

// ObserveStore records one store mutation.
func (m *Metrics) ObserveStore(event string) {
	if m == nil {
		return
	}
	m.StoreMutations.WithLabelValues(event).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// Handler returns the /metrics HTTP handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr is a no-op.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if m == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
