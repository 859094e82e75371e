// Package observability wires the prometheus registry and its HTTP
// exposition endpoint.
package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jtoivane/auradsp/internal/logging"
	"github.com/jtoivane/auradsp/internal/observability/metrics"
)

// Metrics bundles the registry with the per-subsystem collectors.
type Metrics struct {
	registry *prometheus.Registry

	Engine *metrics.EngineMetrics
}

// NewMetrics creates a registry with the standard Go collectors and the
// engine metrics registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	engineMetrics, err := metrics.NewEngineMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registry: registry,
		Engine:   engineMetrics,
	}, nil
}

// Handler returns the prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on the given address in a background goroutine.
func (m *Metrics) Serve(addr string) {
	logger := logging.ForService("observability")
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics endpoint failed", "error", err)
		}
	}()
}
