package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/distributoor/internal/export"
)

// ClickHouseSinkConfig configures the ClickHouse snapshot sink.
type ClickHouseSinkConfig struct {
	Enabled bool `yaml:"enabled"`

	export.ClickHouseConfig `yaml:",inline"`
}

// ClickHouseSink writes snapshot records to ClickHouse in batches.
type ClickHouseSink struct {
	log    logrus.FieldLogger
	cfg    ClickHouseSinkConfig
	writer *export.ClickHouseWriter
	health *export.HealthMetrics

	mu       sync.Mutex
	batch    []Record
	cancel   context.CancelFunc
	done     chan struct{}
	recordCh chan Record

	// flushFn writes one batch; swapped out in tests.
	flushFn func(ctx context.Context, rows []Record) error
}

var _ Sink = (*ClickHouseSink)(nil)

// NewClickHouseSink creates a new ClickHouse snapshot sink.
func NewClickHouseSink(
	log logrus.FieldLogger,
	cfg ClickHouseSinkConfig,
	health *export.HealthMetrics,
) *ClickHouseSink {
	s := &ClickHouseSink{
		log:      log.WithField("sink", "clickhouse"),
		cfg:      cfg,
		writer:   export.NewClickHouseWriter(log, cfg.ClickHouseConfig),
		health:   health,
		batch:    make([]Record, 0, cfg.BatchSize),
		done:     make(chan struct{}),
		recordCh: make(chan Record, 4096),
	}
	s.flushFn = s.flush

	return s
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

// Start opens the ClickHouse connection and begins the flush loop.
func (s *ClickHouseSink) Start(ctx context.Context) error {
	if err := s.writer.Start(ctx); err != nil {
		return err
	}

	if s.health != nil {
		s.health.ClickHouseConnected.Set(1)
	}

	ctx, s.cancel = context.WithCancel(ctx)

	go s.runLoop(ctx)

	s.log.Info("ClickHouse sink started")

	return nil
}

// Stop drains the queue, flushes the final batch and closes the connection.
func (s *ClickHouseSink) Stop() error {
	if s.cancel == nil {
		return s.writer.Stop()
	}

	s.cancel()
	<-s.done

	s.mu.Lock()
	remaining := s.batch
	s.batch = nil
	s.mu.Unlock()

	// The loop can exit with records still queued. They were accepted by
	// HandleRecord, so they are flushed here, not dropped.
drain:
	for {
		select {
		case rec := <-s.recordCh:
			remaining = append(remaining, rec)
		default:
			break drain
		}
	}

	if len(remaining) > 0 {
		if err := s.flushFn(context.Background(), remaining); err != nil {
			s.log.WithError(err).Error("Final flush failed")
			s.reportExportError()
		}
	}

	if s.health != nil {
		s.health.ClickHouseConnected.Set(0)
	}

	return s.writer.Stop()
}

// HandleRecord enqueues a record, dropping it if the queue is full.
func (s *ClickHouseSink) HandleRecord(rec Record) {
	select {
	case s.recordCh <- rec:
		if s.health != nil {
			s.health.SinkRecordsQueued.WithLabelValues(s.Name()).Inc()
		}
	default:
		s.log.Warn("ClickHouse sink queue full, dropping record")

		if s.health != nil {
			s.health.SinkRecordsDropped.WithLabelValues(s.Name()).Inc()
		}
	}
}

func (s *ClickHouseSink) runLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.writer.Config().FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-s.recordCh:
			s.addRecord(ctx, rec)
		case <-ticker.C:
			s.tickFlush(ctx)
		}
	}
}

func (s *ClickHouseSink) addRecord(ctx context.Context, rec Record) {
	s.mu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.writer.Config().BatchSize
	var rows []Record

	if full {
		rows = s.batch
		s.batch = make([]Record, 0, s.writer.Config().BatchSize)
	}
	s.mu.Unlock()

	if full {
		if err := s.flushFn(ctx, rows); err != nil {
			s.log.WithError(err).Error("Batch flush failed")
			s.reportExportError()
		}
	}
}

func (s *ClickHouseSink) tickFlush(ctx context.Context) {
	s.mu.Lock()
	rows := s.batch
	s.batch = make([]Record, 0, s.writer.Config().BatchSize)
	s.mu.Unlock()

	if len(rows) == 0 {
		return
	}

	if err := s.flushFn(ctx, rows); err != nil {
		s.log.WithError(err).Error("Interval flush failed")
		s.reportExportError()
	}
}

// flush writes one batch of records to the snapshot table.
func (s *ClickHouseSink) flush(ctx context.Context, rows []Record) error {
	start := time.Now()

	cfg := s.writer.Config()
	table := fmt.Sprintf("%s.%s", cfg.Database, cfg.Table)

	// `values` needs quoting, it collides with the VALUES keyword.
	batch, err := s.writer.Conn().PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (created_at, kind, unit, `values`, sum, count, meta_client_name, meta_network_name)", table))
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(
			row.CreatedAt,
			row.Kind,
			row.Unit,
			map[uint64]uint64(row.Values),
			row.Sum,
			row.Count,
			row.MetaClientName,
			row.MetaNetworkName,
		); err != nil {
			return fmt.Errorf("appending row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch of %d rows: %w", len(rows), err)
	}

	if s.health != nil {
		s.health.SinkFlushDuration.WithLabelValues(s.Name()).
			Observe(time.Since(start).Seconds())
		s.health.SinkBatchSize.WithLabelValues(s.Name()).
			Observe(float64(len(rows)))
	}

	s.log.WithField("rows", len(rows)).
		Debug("Flushed snapshot records")

	return nil
}

func (s *ClickHouseSink) reportExportError() {
	if s.health != nil {
		s.health.ExportErrors.WithLabelValues(s.Name()).Inc()
	}
}
