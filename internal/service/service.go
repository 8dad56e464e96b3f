// Package service runs the distribution ingest API: an HTTP server that
// accepts batches of raw samples, accumulates them into histograms and
// returns the serialized snapshot, fanning a copy out to the configured
// sinks.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/distributoor/internal/distribution"
	"github.com/ethpandaops/distributoor/internal/export"
	"github.com/ethpandaops/distributoor/internal/histogram"
	"github.com/ethpandaops/distributoor/internal/sink"
	"github.com/ethpandaops/distributoor/internal/units"
)

// Service is the top-level ingest service. It owns the HTTP server, the
// health metrics server and the sinks.
type Service struct {
	log    logrus.FieldLogger
	cfg    *Config
	health *export.HealthMetrics
	sinks  []sink.Sink

	server   *http.Server
	listener net.Listener
}

// New creates a new Service from the given config.
func New(log logrus.FieldLogger, cfg *Config) (*Service, error) {
	health := export.NewHealthMetrics(log, cfg.Health)

	sinks := make([]sink.Sink, 0, 2)

	if cfg.Sinks.ClickHouse.Enabled {
		sinks = append(sinks, sink.NewClickHouseSink(log, cfg.Sinks.ClickHouse, health))
	}

	if cfg.Sinks.HTTP.Enabled {
		httpSink, err := sink.NewHTTPSink(log, cfg.Sinks.HTTP, health)
		if err != nil {
			return nil, fmt.Errorf("creating http sink: %w", err)
		}

		sinks = append(sinks, httpSink)
	}

	return &Service{
		log:    log.WithField("component", "service"),
		cfg:    cfg,
		health: health,
		sinks:  sinks,
	}, nil
}

// Start starts the health server, the sinks and the ingest API. It does
// not block; use Stop to shut down.
func (s *Service) Start(ctx context.Context) error {
	if err := s.health.Start(ctx); err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}

	for _, snk := range s.sinks {
		if err := snk.Start(ctx); err != nil {
			return fmt.Errorf("starting %s sink: %w", snk.Name(), err)
		}
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.WithField("addr", ln.Addr().String()).
			Info("Ingest API started")

		if err := s.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("Ingest API error")
		}
	}()

	return nil
}

// Addr returns the actual ingest listener address.
func (s *Service) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.cfg.Addr
}

// Stop shuts down the ingest API, then the sinks, then the health server.
func (s *Service) Stop() error {
	if s.server != nil {
		if err := s.server.Close(); err != nil {
			s.log.WithError(err).Error("Failed to close ingest API")
		}
	}

	for _, snk := range s.sinks {
		if err := snk.Stop(); err != nil {
			s.log.WithError(err).
				WithField("sink", snk.Name()).
				Error("Failed to stop sink")
		}
	}

	if err := s.health.Stop(); err != nil {
		s.log.WithError(err).Error("Failed to stop health server")
	}

	s.log.Info("Service stopped")

	return nil
}

// Handler returns the ingest API HTTP handler.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/distributions/custom", s.handleCustom)
	mux.HandleFunc("/v1/distributions/timing", s.handleTiming)
	mux.HandleFunc("/v1/distributions/memory", s.handleMemory)

	return mux
}

// customRequest is the body for POST /v1/distributions/custom.
type customRequest struct {
	RangeMin      uint32   `json:"range_min"`
	RangeMax      uint32   `json:"range_max"`
	BucketCount   int      `json:"bucket_count"`
	HistogramType int32    `json:"histogram_type"`
	Samples       []uint64 `json:"samples"`
}

// unitRequest is the body for the timing and memory endpoints. Unit is
// the time unit code for timing and the memory unit code for memory.
type unitRequest struct {
	Unit    int32    `json:"unit"`
	Samples []uint64 `json:"samples"`
}

func (s *Service) handleCustom(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req customRequest
	if !s.decode(w, r, "custom", &req) {
		return
	}

	kind := "custom_linear"
	if req.HistogramType == int32(histogram.TypeExponential) {
		kind = "custom_exponential"
	}

	values, err := distribution.CustomValues(
		req.RangeMin, req.RangeMax, req.BucketCount, req.HistogramType, req.Samples,
	)
	if err != nil {
		s.respondError(w, kind, err)

		return
	}

	var sum uint64
	for _, sample := range req.Samples {
		sum += sample
	}

	s.respond(w, kind, started, values, sink.Record{
		Kind:   kind,
		Values: values,
		Sum:    sum,
		Count:  uint64(len(req.Samples)),
	}, len(req.Samples))
}

func (s *Service) handleTiming(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req unitRequest
	if !s.decode(w, r, "timing", &req) {
		return
	}

	snap, err := distribution.TimingSnapshot(req.Unit, req.Samples)
	if err != nil {
		s.respondError(w, "timing", err)

		return
	}

	unit, _ := units.TimeUnitFromCode(req.Unit)

	s.respond(w, "timing", started, snap, sink.Record{
		Kind:   "timing",
		Unit:   unit.String(),
		Values: snap.Values,
		Sum:    snap.Sum,
		Count:  snap.Count,
	}, len(req.Samples))
}

func (s *Service) handleMemory(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req unitRequest
	if !s.decode(w, r, "memory", &req) {
		return
	}

	snap, err := distribution.MemorySnapshot(req.Unit, req.Samples)
	if err != nil {
		s.respondError(w, "memory", err)

		return
	}

	unit, _ := units.MemoryUnitFromCode(req.Unit)

	s.respond(w, "memory", started, snap, sink.Record{
		Kind:   "memory",
		Unit:   unit.String(),
		Values: snap.Values,
		Sum:    snap.Sum,
		Count:  snap.Count,
	}, len(req.Samples))
}

// decode parses the request body, rejecting anything but a well-formed
// POST. Returns false if a response has already been written.
func (s *Service) decode(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	into any,
) bool {
	if r.Method != http.MethodPost {
		s.health.RequestsTotal.WithLabelValues(kind, "error").Inc()
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return false
	}

	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.health.RequestsTotal.WithLabelValues(kind, "error").Inc()
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parsing request body: %w", err))

		return false
	}

	return true
}

// respond serializes the snapshot back to the caller and fans the record
// out to the sinks.
func (s *Service) respond(
	w http.ResponseWriter,
	kind string,
	started time.Time,
	payload any,
	rec sink.Record,
	sampleCount int,
) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.respondError(w, kind, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).Debug("Failed to write response")
	}

	s.health.RequestsTotal.WithLabelValues(kind, "ok").Inc()
	s.health.RequestDuration.WithLabelValues(kind).
		Observe(time.Since(started).Seconds())
	s.health.SamplesAccumulated.WithLabelValues(kind).
		Add(float64(sampleCount))
	s.health.SnapshotBuckets.Observe(float64(len(rec.Values)))

	rec.CreatedAt = time.Now()
	rec.MetaClientName = s.cfg.MetaClientName
	rec.MetaNetworkName = s.cfg.MetaNetworkName

	for _, snk := range s.sinks {
		snk.HandleRecord(rec)
	}
}

func (s *Service) respondError(w http.ResponseWriter, kind string, err error) {
	s.health.RequestsTotal.WithLabelValues(kind, "error").Inc()

	status := http.StatusInternalServerError
	if errors.Is(err, distribution.ErrInvalidArgument) {
		status = http.StatusBadRequest
	}

	s.writeError(w, status, err)
}

func (s *Service) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if encErr := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); encErr != nil {
		s.log.WithError(encErr).Debug("Failed to write error response")
	}
}
