// Package sink delivers completed distribution snapshots to external
// stores. Sinks consume records asynchronously; a slow sink drops records
// rather than stalling request handling.
package sink

import (
	"context"
	"time"

	"github.com/ethpandaops/distributoor/internal/histogram"
)

// Config holds configuration for all sinks.
type Config struct {
	ClickHouse ClickHouseSinkConfig `yaml:"clickhouse"`
	HTTP       HTTPConfig           `yaml:"http"`
}

// Record is one completed distribution snapshot ready for export.
type Record struct {
	CreatedAt time.Time `json:"created_at"`

	// Kind is the distribution entry point that produced the snapshot:
	// custom_linear, custom_exponential, timing or memory.
	Kind string `json:"kind"`

	// Unit names the input unit for timing/memory records.
	Unit string `json:"unit,omitempty"`

	Values histogram.Values `json:"values"`
	Sum    uint64           `json:"sum"`
	Count  uint64           `json:"count"`

	MetaClientName  string `json:"meta_client_name,omitempty"`
	MetaNetworkName string `json:"meta_network_name,omitempty"`
}

// Sink defines the interface for snapshot record consumers.
type Sink interface {
	// Name returns the sink's name for logging.
	Name() string
	// Start initializes the sink.
	Start(ctx context.Context) error
	// Stop shuts down the sink, flushing anything buffered.
	Stop() error
	// HandleRecord enqueues a single snapshot record.
	HandleRecord(rec Record)
}
