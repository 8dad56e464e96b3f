package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/distributoor/internal/histogram"
)

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestHTTPExporter_ExportItems(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string
	var receivedContentEncoding string
	var receivedCustomHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedContentEncoding = r.Header.Get("Content-Encoding")
		receivedCustomHeader = r.Header.Get("X-Custom-Header")

		body, _ := io.ReadAll(r.Body)
		receivedBody = body

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := HTTPConfig{
		Enabled:     true,
		Address:     server.URL,
		Compression: CompressionGzip,
		Headers: map[string]string{
			"X-Custom-Header": "test-value",
		},
	}
	cfg.ApplyDefaults()

	exporter, err := newHTTPExporter(quietLog(), cfg)
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	items := []*Record{
		{
			CreatedAt: time.Now(),
			Kind:      "timing",
			Unit:      "nanosecond",
			Values:    histogram.Values{1: 2},
			Sum:       2,
			Count:     2,
		},
		{
			CreatedAt: time.Now(),
			Kind:      "memory",
			Unit:      "byte",
			Values:    histogram.Values{1024: 1},
			Sum:       1024,
			Count:     1,
		},
	}

	require.NoError(t, exporter.ExportItems(context.Background(), items))

	assert.Equal(t, "application/x-ndjson", receivedContentType)
	assert.Equal(t, "gzip", receivedContentEncoding)
	assert.Equal(t, "test-value", receivedCustomHeader)

	decompressed := decompressGzip(t, receivedBody)

	lines := strings.Split(strings.TrimSpace(string(decompressed)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"kind":"timing"`)
	assert.Contains(t, lines[0], `"values":{"1":2}`)
	assert.Contains(t, lines[1], `"kind":"memory"`)
}

func TestHTTPExporter_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := HTTPConfig{
		Enabled: true,
		Address: server.URL,
	}
	cfg.ApplyDefaults()

	exporter, err := newHTTPExporter(quietLog(), cfg)
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	err = exporter.ExportItems(context.Background(), []*Record{{Kind: "timing"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 502")
}

func TestHTTPExporter_EmptyBatch(t *testing.T) {
	cfg := HTTPConfig{
		Enabled: true,
		Address: "http://localhost:0",
	}
	cfg.ApplyDefaults()

	exporter, err := newHTTPExporter(quietLog(), cfg)
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	assert.NoError(t, exporter.ExportItems(context.Background(), nil))
}

func TestHTTPConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HTTPConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: HTTPConfig{
				Enabled:      true,
				Address:      "http://localhost:8080",
				BatchSize:    100,
				MaxQueueSize: 1000,
				Workers:      1,
			},
			wantErr: false,
		},
		{
			name: "disabled config - no validation",
			cfg: HTTPConfig{
				Enabled: false,
			},
			wantErr: false,
		},
		{
			name: "missing address",
			cfg: HTTPConfig{
				Enabled: true,
			},
			wantErr: true,
		},
		{
			name: "invalid compression",
			cfg: HTTPConfig{
				Enabled:     true,
				Address:     "http://localhost:8080",
				Compression: "invalid",
			},
			wantErr: true,
		},
		{
			name: "batch size > queue size",
			cfg: HTTPConfig{
				Enabled:      true,
				Address:      "http://localhost:8080",
				BatchSize:    1000,
				MaxQueueSize: 100,
				Workers:      1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
