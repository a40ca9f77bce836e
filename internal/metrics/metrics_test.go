package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCountsOutcomes(t *testing.T) {
	o := NewObserver()
	ctx := context.Background()

	o.ObserveUseCase(ctx, service.UseCaseEvent{Name: "invoice.create", Duration: 20 * time.Millisecond, Success: true})
	o.ObserveUseCase(ctx, service.UseCaseEvent{Name: "invoice.create", Duration: time.Millisecond, Err: domain.Invalid("no items")})
	o.ObserveUseCase(ctx, service.UseCaseEvent{Name: "invoice.create", Duration: time.Millisecond, Success: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(o.useCases.WithLabelValues("invoice.create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.useCases.WithLabelValues("invoice.create", "validation")))
	assert.Equal(t, 1, testutil.CollectAndCount(o.durations))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.Invalid("x"), "validation"},
		{domain.NotFound("invoice", 1), "not_found"},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidReference), "invalid_reference"},
		{domain.InvalidState("sent"), "invalid_state"},
		{fmt.Errorf("op: %w", domain.ErrConcurrency), "concurrency"},
		{&domain.InfrastructureError{Op: "db", Err: errors.New("disk")}, "infrastructure"},
		{errors.New("unclassified"), "infrastructure"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	o := NewObserver()
	o.ObserveUseCase(context.Background(), service.UseCaseEvent{Name: "invoice.send", Success: true})

	rec := httptest.NewRecorder()
	o.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `billable_use_cases_total{outcome="ok",use_case="invoice.send"} 1`)
	assert.Contains(t, string(body), "billable_use_case_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServeStopsOnCancel(t *testing.T) {
	o := NewObserver()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
