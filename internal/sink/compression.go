package sink

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression type constants.
const (
	CompressionNone   = "none"
	CompressionGzip   = "gzip"
	CompressionZstd   = "zstd"
	CompressionZlib   = "zlib"
	CompressionSnappy = "snappy"
)

// Compressor compresses export payloads using a configured algorithm.
type Compressor struct {
	algorithm string
	encoder   *zstd.Encoder
}

// NewCompressor creates a Compressor for the specified algorithm.
func NewCompressor(algorithm string) (*Compressor, error) {
	c := &Compressor{algorithm: algorithm}

	// zstd encoders are expensive; create one up front and reuse it.
	if algorithm == CompressionZstd {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}

		c.encoder = encoder
	}

	return c, nil
}

// Compress compresses the data using the configured algorithm.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case CompressionNone, "":
		return data, nil
	case CompressionGzip:
		return compressWriter(data, "gzip", gzip.NewWriter)
	case CompressionZstd:
		return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
	case CompressionZlib:
		return compressWriter(data, "zlib", zlib.NewWriter)
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// ContentEncoding returns the Content-Encoding header value for the
// algorithm, or empty when no header should be set.
func (c *Compressor) ContentEncoding() string {
	switch c.algorithm {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionZlib:
		return "deflate"
	case CompressionSnappy:
		return "snappy"
	default:
		return ""
	}
}

// Close releases encoder resources.
func (c *Compressor) Close() error {
	if c.encoder != nil {
		return c.encoder.Close()
	}

	return nil
}

func compressWriter[W io.WriteCloser](
	data []byte,
	name string,
	newWriter func(io.Writer) W,
) ([]byte, error) {
	var buf bytes.Buffer

	w := newWriter(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%s write: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s close: %w", name, err)
	}

	return buf.Bytes(), nil
}

// validCompression reports whether the algorithm name is recognized.
func validCompression(algorithm string) bool {
	switch algorithm {
	case "", CompressionNone, CompressionGzip, CompressionZstd,
		CompressionZlib, CompressionSnappy:
		return true
	default:
		return false
	}
}
