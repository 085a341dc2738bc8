// Package metrics exposes Prometheus metrics for the orchestration fabric:
// broadcast latency (proposal and game session actors, spec.md §4.5),
// active connection counts, and gauges and counters for sessions and game
// subprocesses (spec.md §4.3, §4.6) that nothing in this module updates.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceMetrics holds process-wide health metrics common to every build.
type ServiceMetrics struct {
	BuildInfo *prometheus.GaugeVec
	StartTime prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// OrchestrationMetrics holds the metrics specific to the session and
// game-process orchestration fabric described in spec.md §2.
type OrchestrationMetrics struct {
	// BroadcastLatency observes the time a single-recipient send inside a
	// broadcast takes, labeled by which session actor performed it
	// ("proposal-actor" or "game-actor", each with a 200ms per-recipient
	// timeout). The connection registry's broadcasts are not recorded.
	BroadcastLatency *prometheus.HistogramVec

	// BroadcastTimeouts counts per-recipient send timeouts (evictions).
	BroadcastTimeouts *prometheus.CounterVec

	// The metrics below, apart from ActiveConnections, are registered but
	// nothing in this module updates them, so they stay at zero.

	// ActiveProposalSessions / ActiveGameSessions count live session actors.
	ActiveProposalSessions prometheus.Gauge
	ActiveGameSessions     prometheus.Gauge

	// ActiveConnections tracks live connection actors (C7/C8).
	ActiveConnections prometheus.Gauge

	// ActiveSubprocesses tracks live game subprocesses (C3).
	ActiveSubprocesses prometheus.Gauge

	// SubprocessRequestDuration observes round-trip latency of a single
	// game subprocess request/response pair.
	SubprocessRequestDuration *prometheus.HistogramVec

	// SubprocessFatalErrors counts protocol-fatal subprocess errors
	// (mismatched response tag, JSON parse failure, crash).
	SubprocessFatalErrors *prometheus.CounterVec
}

func newServiceMetrics(namespace string) *ServiceMetrics {
	return &ServiceMetrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		}, []string{"version", "commit", "build_time"}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of service start time",
		}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests to the metrics/health endpoint",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func newOrchestrationMetrics(namespace string) *OrchestrationMetrics {
	return &OrchestrationMetrics{
		BroadcastLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "send_duration_seconds",
			Help:      "Per-recipient broadcast send duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .2, .5, 1},
		}, []string{"origin"}),
		BroadcastTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "timeouts_total",
			Help:      "Per-recipient broadcast sends that timed out and were evicted",
		}, []string{"origin"}),
		ActiveProposalSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active_proposal_sessions",
			Help:      "Number of live proposal session actors",
		}),
		ActiveGameSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active_game_sessions",
			Help:      "Number of live game session actors",
		}),
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "active_connections",
			Help:      "Number of live connection actors",
		}),
		ActiveSubprocesses: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gameproc",
			Name:      "active_subprocesses",
			Help:      "Number of live game subprocesses",
		}),
		SubprocessRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gameproc",
			Name:      "request_duration_seconds",
			Help:      "Game subprocess request/response round-trip duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request_type"}),
		SubprocessFatalErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gameproc",
			Name:      "fatal_errors_total",
			Help:      "Protocol-fatal game subprocess errors",
		}, []string{"reason"}),
	}
}

// Registry is the process-wide metrics registry.
type Registry struct {
	serviceName string
	logger      *slog.Logger

	Service       *ServiceMetrics
	Orchestration *OrchestrationMetrics

	server *http.Server
}

// NewRegistry constructs and registers all metrics for serviceName.
func NewRegistry(serviceName, version, buildTime, gitCommit string, logger *slog.Logger) *Registry {
	reg := &Registry{
		serviceName:   serviceName,
		logger:        logger,
		Service:       newServiceMetrics("playferrous"),
		Orchestration: newOrchestrationMetrics("playferrous"),
	}

	reg.Service.BuildInfo.WithLabelValues(version, gitCommit, buildTime).Set(1)
	reg.Service.StartTime.SetToCurrentTime()

	return reg
}

// StartMetricsServer starts the HTTP server exposing /metrics and /health.
func (r *Registry) StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"` + r.serviceName + `"}`))
	})

	r.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	r.logger.Info("starting metrics server", "port", port)
	return r.server.ListenAndServe()
}

// StopMetricsServer shuts the metrics HTTP server down.
func (r *Registry) StopMetricsServer(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info("stopping metrics server")
	return r.server.Shutdown(ctx)
}

// HTTPMiddleware instruments an HTTP handler with request count/duration.
func (r *Registry) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, req)

			duration := time.Since(start)
			status := strconv.Itoa(wrapped.statusCode)

			r.Service.HTTPRequestsTotal.WithLabelValues(req.Method, req.URL.Path, status).Inc()
			r.Service.HTTPRequestDuration.WithLabelValues(req.Method, req.URL.Path).Observe(duration.Seconds())
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ObserveBroadcastSend records the outcome of one per-recipient broadcast
// send, origin being "proposal-actor" or "game-actor".
func (m *OrchestrationMetrics) ObserveBroadcastSend(origin string, d time.Duration, timedOut bool) {
	m.BroadcastLatency.WithLabelValues(origin).Observe(d.Seconds())
	if timedOut {
		m.BroadcastTimeouts.WithLabelValues(origin).Inc()
	}
}
