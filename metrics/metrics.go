// Package metrics exposes a Prometheus registry analogous in shape to
// the teacher's metrics/geth.go (an http.Server wrapping one metrics
// handler, started/stopped around a context), but built on
// github.com/prometheus/client_golang directly rather than
// go-ethereum's internal metrics package, since this gateway needs
// custom per-method, per-cache-layer, and per-connection instruments
// the geth registry doesn't define.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cosmossdk.io/log"
)

// Registry holds every instrument the gateway records against.
type Registry struct {
	RequestsTotal     *prometheus.CounterVec
	MethodErrors      *prometheus.CounterVec
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	SubmissionSeconds *prometheus.HistogramVec
	WSConnections     prometheus.Gauge
	WSSubscriptions   prometheus.Gauge

	registry *prometheus.Registry
}

// New builds and registers every instrument against its own registry,
// so multiple Registry instances never collide in tests.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total JSON-RPC requests processed, labeled by method.",
		}, []string{"method"}),
		MethodErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_method_errors_total",
			Help: "Total JSON-RPC errors returned, labeled by method and error kind.",
		}, []string{"method", "kind"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cache_hits_total",
			Help: "Cache Service hits, labeled by layer.",
		}, []string{"layer"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cache_misses_total",
			Help: "Cache Service misses, labeled by layer.",
		}, []string{"layer"}),
		SubmissionSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_submission_seconds",
			Help:    "Submission Pipeline latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_ws_connections",
			Help: "Currently open WebSocket connections.",
		}),
		WSSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_ws_subscriptions",
			Help: "Currently active subscriptions across all connections.",
		}),
	}
	r.registry = reg
	return r
}

// Handler serves the registry's instruments in the Prometheus text
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// StartServer serves the registry's /metrics handler, following the
// teacher's StartGethMetricServer lifecycle: listen in a goroutine,
// block on ctx.Done() or a listen error, shut down gracefully.
func (r *Registry) StartServer(ctx context.Context, logger log.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting metrics server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("stopping metrics server", "address", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "err", err)
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start metrics server", "err", err)
			return err
		}
		return nil
	}
}
