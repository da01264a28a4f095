package util

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter serves a registry on /metrics
type PrometheusExporter struct {
	server *http.Server
	logger *slog.Logger
}

// NewPrometheusExporter creates an exporter listening on addr (e.g. ":2112")
func NewPrometheusExporter(addr string, registry *prometheus.Registry, logger *slog.Logger) *PrometheusExporter {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &PrometheusExporter{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the HTTP handler of the exporter
func (e *PrometheusExporter) Handler() http.Handler {
	return e.server.Handler
}

// Start serves in the background
func (e *PrometheusExporter) Start() {
	go func() {
		e.logger.Info("serving metrics", slog.String("addr", e.server.Addr))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
}

// Shutdown stops the server
func (e *PrometheusExporter) Shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}
