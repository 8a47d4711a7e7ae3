// Package metrics provides Prometheus instrumentation for the vote relay.
//
// # Basic Usage
//
//	// Count a poll iteration
//	metrics.PollIterations.WithLabelValues("inserted").Inc()
//
//	// Time a sink call
//	timer := metrics.NewTimer()
//	err := sink.Insert(ctx, vote)
//	metrics.ObserveSinkOperation("postgres", "insert", timer.Stop(), err)
//
// Serve exposes the default registry on /metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "vote_worker"

var (
	// PollIterations counts loop iterations by outcome.
	// Labels: outcome (empty, inserted, pop_failed, decode_failed, insert_failed)
	PollIterations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_iterations_total",
			Help:      "Total number of poll loop iterations",
		},
		[]string{"outcome"},
	)

	// MessagesPopped counts messages removed from the queue, whatever
	// happened to them afterwards.
	MessagesPopped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_popped_total",
			Help:      "Total number of messages popped from the queue",
		},
	)

	// SinkOperations counts sink calls.
	// Labels: sink, operation (connect, ensure_table, insert), status (success/failure)
	SinkOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_operations_total",
			Help:      "Total number of sink operations",
		},
		[]string{"sink", "operation", "status"},
	)

	// SinkOperationDuration tracks sink call latency.
	// Labels: sink, operation
	SinkOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_operation_duration_seconds",
			Help:      "Sink operation latency in seconds",
			Buckets: []float64{
				0.001, // 1ms - local database
				0.005,
				0.025,
				0.1, // 100ms - remote database / REST
				0.5,
				2.5,
				10, // connection timeouts
			},
		},
		[]string{"sink", "operation"},
	)
)

// ObserveSinkOperation records the status and latency of one sink call
func ObserveSinkOperation(sink, operation string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	SinkOperations.WithLabelValues(sink, operation, status).Inc()
	SinkOperationDuration.WithLabelValues(sink, operation).Observe(d.Seconds())
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Serve exposes /metrics on addr until ctx is cancelled. It returns nil
// after a clean shutdown.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
