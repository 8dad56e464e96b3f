package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/distributoor/internal/export"
)

// HTTPConfig configures the HTTP snapshot sink.
type HTTPConfig struct {
	// Enabled enables the HTTP sink.
	Enabled bool `yaml:"enabled"`

	// Address is the HTTP endpoint snapshot records are sent to.
	Address string `yaml:"address"`

	// Headers are additional HTTP headers to include in requests.
	Headers map[string]string `yaml:"headers"`

	// Compression specifies the compression algorithm.
	// Valid values: none, gzip, zstd, zlib, snappy.
	// Defaults to gzip.
	Compression string `yaml:"compression"`

	// BatchSize is the maximum number of records per batch.
	// Defaults to 512.
	BatchSize int `yaml:"batch_size"`

	// BatchTimeout is the maximum duration to wait before sending a batch.
	// Defaults to 5s.
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// ExportTimeout is the maximum duration for an export operation.
	// Defaults to 30s.
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// MaxQueueSize is the maximum number of records to queue.
	// Records are dropped if the queue is full.
	// Defaults to 8192.
	MaxQueueSize int `yaml:"max_queue_size"`

	// Workers is the number of concurrent export workers.
	// Defaults to 1.
	Workers int `yaml:"workers"`
}

// ApplyDefaults applies default values to unset fields.
func (c *HTTPConfig) ApplyDefaults() {
	if c.Compression == "" {
		c.Compression = CompressionGzip
	}

	if c.BatchSize <= 0 {
		c.BatchSize = 512
	}

	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 5 * time.Second
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 30 * time.Second
	}

	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 8192
	}

	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// Validate validates the configuration.
func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Address == "" {
		return errors.New("http address is required when enabled")
	}

	if c.BatchSize > c.MaxQueueSize && c.MaxQueueSize > 0 {
		return errors.New("batch_size cannot be greater than max_queue_size")
	}

	if !validCompression(c.Compression) {
		return errors.New("invalid compression type: " + c.Compression)
	}

	return nil
}

// httpExporter sends record batches to the endpoint as NDJSON. It
// implements processor.ItemExporter so the batch processor owns queueing,
// batching and retry-free delivery.
type httpExporter struct {
	cfg        HTTPConfig
	client     *http.Client
	compressor *Compressor
	log        logrus.FieldLogger
}

var _ processor.ItemExporter[Record] = (*httpExporter)(nil)

func newHTTPExporter(log logrus.FieldLogger, cfg HTTPConfig) (*httpExporter, error) {
	compressor, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.Workers * 2,
		MaxIdleConnsPerHost: cfg.Workers * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &httpExporter{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ExportTimeout,
		},
		compressor: compressor,
		log:        log.WithField("component", "http_exporter"),
	}, nil
}

// ExportItems exports a batch of records as newline-delimited JSON.
func (e *httpExporter) ExportItems(ctx context.Context, items []*Record) error {
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.Grow(len(items) * 256)

	encoder := json.NewEncoder(&buf)

	for _, item := range items {
		if item == nil {
			continue
		}

		if err := encoder.Encode(item); err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
	}

	data := buf.Bytes()

	compressed, err := e.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("compressing data: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, e.cfg.Address, bytes.NewReader(compressed),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-ndjson")

	if encoding := e.compressor.ContentEncoding(); encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	defer resp.Body.Close()

	// Drain response body to enable connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	e.log.WithFields(logrus.Fields{
		"records":    len(items),
		"bytes":      len(data),
		"compressed": len(compressed),
	}).Debug("Exported batch via HTTP")

	return nil
}

// Shutdown shuts down the exporter.
func (e *httpExporter) Shutdown(_ context.Context) error {
	if e.compressor != nil {
		return e.compressor.Close()
	}

	return nil
}

// HTTPSink streams snapshot records to an HTTP endpoint.
type HTTPSink struct {
	log    logrus.FieldLogger
	cfg    HTTPConfig
	proc   *processor.BatchItemProcessor[Record]
	health *export.HealthMetrics
}

var _ Sink = (*HTTPSink)(nil)

// NewHTTPSink creates a new HTTP snapshot sink.
func NewHTTPSink(
	log logrus.FieldLogger,
	cfg HTTPConfig,
	health *export.HealthMetrics,
) (*HTTPSink, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	exporter, err := newHTTPExporter(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating exporter: %w", err)
	}

	proc, err := processor.NewBatchItemProcessor[Record](
		exporter,
		"snapshot_http",
		log,
		processor.WithMaxQueueSize(cfg.MaxQueueSize),
		processor.WithBatchTimeout(cfg.BatchTimeout),
		processor.WithExportTimeout(cfg.ExportTimeout),
		processor.WithMaxExportBatchSize(cfg.BatchSize),
		processor.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processor: %w", err)
	}

	return &HTTPSink{
		log:    log.WithField("sink", "http"),
		cfg:    cfg,
		proc:   proc,
		health: health,
	}, nil
}

func (s *HTTPSink) Name() string { return "http" }

// Start begins the batch processor.
func (s *HTTPSink) Start(ctx context.Context) error {
	s.proc.Start(ctx)
	s.log.Info("HTTP sink started")

	return nil
}

// Stop flushes queued records and shuts down the processor.
func (s *HTTPSink) Stop() error {
	if err := s.proc.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutting down processor: %w", err)
	}

	return nil
}

// HandleRecord enqueues a record for export.
func (s *HTTPSink) HandleRecord(rec Record) {
	if err := s.proc.Write(context.Background(), []*Record{&rec}); err != nil {
		s.log.WithError(err).Debug("HTTP export failed (queue may be full)")

		if s.health != nil {
			s.health.SinkRecordsDropped.WithLabelValues(s.Name()).Inc()
		}

		return
	}

	if s.health != nil {
		s.health.SinkRecordsQueued.WithLabelValues(s.Name()).Inc()
	}
}
