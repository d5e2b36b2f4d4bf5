package compressor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// DeflateFilter implements gzip/DEFLATE compression.
//
// Compression levels:
//
//	1 = fastest compression, larger output
//	6 = balanced (default)
//	9 = best compression, slower
type DeflateFilter struct {
	level int // Compression level (1-9)
}

// NewDeflateFilter creates a deflate filter with the specified compression level.
// Invalid levels are adjusted to 6 (default).
func NewDeflateFilter(level int) *DeflateFilter {
	if level < 1 || level > 9 {
		level = 6
	}
	return &DeflateFilter{level: level}
}

// ID returns the registry identifier for deflate.
func (f *DeflateFilter) ID() FilterID {
	return FilterDeflate
}

// Name returns the filter name.
func (f *DeflateFilter) Name() string {
	return "deflate"
}

// Apply compresses data.
func (f *DeflateFilter) Apply(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := gzip.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer creation failed: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Remove decompresses data.
func (f *DeflateFilter) Remove(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer func() { _ = r.Close() }()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decompression failed: %w", err)
	}

	return decompressed, nil
}

// Params returns the compression level.
func (f *DeflateFilter) Params() []uint32 {
	return []uint32{uint32(f.level)} //nolint:gosec // G115: level is 1-9
}
