package sink

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decompressGzip(t *testing.T, data []byte) []byte {
	t.Helper()

	r, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	out, err := io.ReadAll(r)
	require.NoError(t, err)

	return out
}

func decompressZlib(t *testing.T, data []byte) []byte {
	t.Helper()

	r, err := zlib.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	out, err := io.ReadAll(r)
	require.NoError(t, err)

	return out
}

func decompressZstd(t *testing.T, data []byte) []byte {
	t.Helper()

	decoder, err := zstd.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer decoder.Close()

	out, err := io.ReadAll(decoder)
	require.NoError(t, err)

	return out
}

func TestCompressor_Gzip(t *testing.T) {
	c, err := NewCompressor(CompressionGzip)
	require.NoError(t, err)
	defer c.Close()

	// Use larger data to ensure compression is effective.
	original := bytes.Repeat([]byte(`{"kind":"timing","values":{"1":2}}`), 16)

	compressed, err := c.Compress(original)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(original))
	assert.Equal(t, "gzip", c.ContentEncoding())
	assert.Equal(t, original, decompressGzip(t, compressed))
}

func TestCompressor_Zstd(t *testing.T) {
	c, err := NewCompressor(CompressionZstd)
	require.NoError(t, err)
	defer c.Close()

	original := []byte(`{"kind":"memory","values":{"1024":1}}`)

	compressed, err := c.Compress(original)
	require.NoError(t, err)

	assert.Equal(t, "zstd", c.ContentEncoding())
	assert.Equal(t, original, decompressZstd(t, compressed))
}

func TestCompressor_Zlib(t *testing.T) {
	c, err := NewCompressor(CompressionZlib)
	require.NoError(t, err)
	defer c.Close()

	original := bytes.Repeat([]byte(`{"kind":"custom_linear","values":{}}`), 16)

	compressed, err := c.Compress(original)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(original))
	assert.Equal(t, "deflate", c.ContentEncoding())
	assert.Equal(t, original, decompressZlib(t, compressed))
}

func TestCompressor_Snappy(t *testing.T) {
	c, err := NewCompressor(CompressionSnappy)
	require.NoError(t, err)
	defer c.Close()

	original := bytes.Repeat([]byte(`{"kind":"timing"}`), 8)

	compressed, err := c.Compress(original)
	require.NoError(t, err)

	assert.Equal(t, "snappy", c.ContentEncoding())

	decompressed, err := snappy.Decode(nil, compressed)
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}

func TestCompressor_None(t *testing.T) {
	c, err := NewCompressor(CompressionNone)
	require.NoError(t, err)
	defer c.Close()

	original := []byte("hello world")

	compressed, err := c.Compress(original)
	require.NoError(t, err)

	assert.Equal(t, original, compressed)
	assert.Equal(t, "", c.ContentEncoding())
}

func TestCompressor_Unsupported(t *testing.T) {
	c, err := NewCompressor("lz77")
	require.NoError(t, err)

	_, err = c.Compress([]byte("data"))
	assert.Error(t, err)
}
