// Package metrics exports service use-case telemetry to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billable"

// Observer counts and times service use cases. It implements service.UseCaseObserver.
type Observer struct {
	registry  *prometheus.Registry
	useCases  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewObserver registers the use-case collectors and the Go runtime collectors on a fresh registry.
func NewObserver() *Observer {
	reg := prometheus.NewRegistry()
	o := &Observer{
		registry: reg,
		useCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "use_cases_total",
			Help:      "Service use case executions by outcome.",
		}, []string{"use_case", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "use_case_duration_seconds",
			Help:      "Service use case latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"use_case"}),
	}
	reg.MustRegister(
		o.useCases,
		o.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

var _ service.UseCaseObserver = (*Observer)(nil)

func (o *Observer) ObserveUseCase(_ context.Context, event service.UseCaseEvent) {
	o.useCases.WithLabelValues(event.Name, Outcome(event.Err)).Inc()
	o.durations.WithLabelValues(event.Name).Observe(event.Duration.Seconds())
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrConcurrency):
		return "concurrency"
	default:
		return "infrastructure"
	}
}

// Handler serves the registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (o *Observer) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", o.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
