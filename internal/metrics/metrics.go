// Package metrics exposes process, gRPC and reconciliation metrics in the
// Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"go.uber.org/zap"
)

const namespace = "zapshift"

type Metrics struct {
	registry   *prometheus.Registry
	reconciles *prometheus.CounterVec
	collisions prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	grpc_prometheus.EnableHandlingTimeHistogram()
	reg.MustRegister(grpc_prometheus.DefaultServerMetrics)

	m := &Metrics{
		registry: reg,
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_reconcile_total",
			Help:      "Payment reconciliations by outcome.",
		}, []string{"outcome"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_id_collisions_total",
			Help:      "Generated tracking ids that were already taken.",
		}),
	}

	reg.MustRegister(m.reconciles, m.collisions)

	// Pre-create every label so dashboards see zeros.
	for _, outcome := range []string{
		service.OutcomeSettled,
		service.OutcomeAlreadyProcessed,
		service.OutcomeUnpaid,
		service.OutcomeFailed,
	} {
		m.reconciles.WithLabelValues(outcome)
	}

	return m
}

func (m *Metrics) ObserveReconcile(outcome string) {
	m.reconciles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTrackingCollision() {
	m.collisions.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Metrics server listening", zap.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
