package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes Prometheus metrics for service health.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	// Request layer
	RequestsTotal      *prometheus.CounterVec // kind, status
	RequestDuration    *prometheus.HistogramVec
	SamplesAccumulated *prometheus.CounterVec // kind
	SnapshotBuckets    prometheus.Histogram

	// Sink layer
	SinkRecordsQueued  *prometheus.CounterVec // sink
	SinkRecordsDropped *prometheus.CounterVec // sink
	SinkFlushDuration  *prometheus.HistogramVec
	SinkBatchSize      *prometheus.HistogramVec
	ExportErrors       *prometheus.CounterVec // sink

	// Export layer
	ClickHouseConnected prometheus.Gauge

	running atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "distributoor",
				Name:      "requests_total",
				Help:      "Total distribution requests by kind and status.",
			},
			[]string{"kind", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "distributoor",
				Name:      "request_duration_seconds",
				Help:      "Time to accumulate and serialize one request.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}, // 100us-500ms
			},
			[]string{"kind"},
		),
		SamplesAccumulated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "distributoor",
				Name:      "samples_accumulated_total",
				Help:      "Total samples accumulated by distribution kind.",
			},
			[]string{"kind"},
		),
		SnapshotBuckets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "distributoor",
			Name:      "snapshot_buckets",
			Help:      "Number of populated buckets per snapshot.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200, 316},
		}),

		SinkRecordsQueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "distributoor",
				Name:      "sink_records_queued_total",
				Help:      "Total snapshot records queued by sink.",
			},
			[]string{"sink"},
		),
		SinkRecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "distributoor",
				Name:      "sink_records_dropped_total",
				Help:      "Total snapshot records dropped due to full queues.",
			},
			[]string{"sink"},
		),
		SinkFlushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "distributoor",
				Name:      "sink_flush_duration_seconds",
				Help:      "Time to flush a batch of records by sink.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}, // 1ms-1s
			},
			[]string{"sink"},
		),
		SinkBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "distributoor",
				Name:      "sink_batch_size",
				Help:      "Number of records per batch flush by sink.",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"sink"},
		),
		ExportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "distributoor",
				Name:      "export_errors_total",
				Help:      "Total export errors by sink.",
			},
			[]string{"sink"},
		),

		ClickHouseConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "distributoor",
			Name:      "clickhouse_connected",
			Help:      "Whether ClickHouse connection is established (1=yes, 0=no).",
		}),
	}

	reg.MustRegister(
		h.RequestsTotal,
		h.RequestDuration,
		h.SamplesAccumulated,
		h.SnapshotBuckets,
		h.SinkRecordsQueued,
		h.SinkRecordsDropped,
		h.SinkFlushDuration,
		h.SinkBatchSize,
		h.ExportErrors,
		h.ClickHouseConnected,
	)

	return h
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop gracefully shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
