// Package http serves the operational endpoints: health, readiness, and
// prometheus metrics for the polling loop.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"playlistwatch/internal/core"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

// Metrics implements core.Metrics on a per-server registry, so two servers in
// one process (or one test binary) never collide on registration.
type Metrics struct {
	PassesTotal        prometheus.Counter
	CyclesTotal        *prometheus.CounterVec
	TracksDetected     prometheus.Counter
	EmailsTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	MonitoredPlaylists prometheus.Gauge
	LastPassTimestamp  prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	metrics := &Metrics{
		PassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "playlistwatch_passes_total",
				Help: "Total number of polling passes started",
			},
		),
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistwatch_cycles_total",
				Help: "Total number of per-playlist cycles by outcome",
			},
			[]string{"status"},
		),
		TracksDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "playlistwatch_tracks_detected_total",
				Help: "Total number of newly added tracks detected",
			},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistwatch_emails_total",
				Help: "Total number of notification emails by outcome",
			},
			[]string{"status"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "playlistwatch_cycle_duration_seconds",
				Help:    "Time spent running one playlist cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		MonitoredPlaylists: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "playlistwatch_monitored_playlists",
				Help: "Number of playlists currently being watched",
			},
		),
		LastPassTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "playlistwatch_last_pass_timestamp_seconds",
				Help: "Unix time the most recent polling pass started",
			},
		),
	}

	registry.MustRegister(
		metrics.PassesTotal,
		metrics.CyclesTotal,
		metrics.TracksDetected,
		metrics.EmailsTotal,
		metrics.CycleDuration,
		metrics.MonitoredPlaylists,
		metrics.LastPassTimestamp,
	)

	return metrics
}

func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	metrics := newMetrics(registry)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"playlistwatch"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"playlistwatch"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>playlistwatch</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1>playlistwatch</h1>
    <p>Spotify playlist watcher with email notifications</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return &Server{
		config:  config,
		logger:  logger,
		server:  server,
		metrics: metrics,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) RecordPass() {
	s.metrics.PassesTotal.Inc()
	s.metrics.LastPassTimestamp.SetToCurrentTime()
}

func (s *Server) RecordCycle(status string) {
	s.metrics.CyclesTotal.WithLabelValues(status).Inc()
}

func (s *Server) RecordTracksDetected(count int) {
	s.metrics.TracksDetected.Add(float64(count))
}

func (s *Server) RecordEmail(delivered bool) {
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	s.metrics.EmailsTotal.WithLabelValues(status).Inc()
}

func (s *Server) ObserveCycleDuration(d time.Duration) {
	s.metrics.CycleDuration.Observe(d.Seconds())
}

func (s *Server) SetMonitoredPlaylists(count int) {
	s.metrics.MonitoredPlaylists.Set(float64(count))
}
