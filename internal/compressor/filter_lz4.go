package compressor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

const (
	lz4Raw   byte = 0
	lz4Block byte = 1

	lz4HeaderSize = 5
)

// LZ4Filter compresses planes as a single LZ4 block.
//
// Output layout: [uint32 original length][mode byte][payload]. Incompressible
// input is stored raw with mode 0, since a block cannot encode its own size.
type LZ4Filter struct{}

// NewLZ4Filter creates an LZ4 block filter.
func NewLZ4Filter() *LZ4Filter {
	return &LZ4Filter{}
}

// ID returns the registry identifier for LZ4.
func (f *LZ4Filter) ID() FilterID {
	return FilterLZ4
}

// Name returns the filter name.
func (f *LZ4Filter) Name() string {
	return "lz4"
}

// Apply compresses data.
func (f *LZ4Filter) Apply(data []byte) ([]byte, error) {
	out := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(out, uint32(len(data))) //nolint:gosec // G115: planes are far below 4 GiB

	n, err := lz4.CompressBlock(data, out[lz4HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 || n >= len(data) {
		out = out[:lz4HeaderSize+len(data)]
		out[4] = lz4Raw
		copy(out[lz4HeaderSize:], data)
		return out, nil
	}
	out[4] = lz4Block
	return out[:lz4HeaderSize+n], nil
}

// Remove decompresses data.
func (f *LZ4Filter) Remove(data []byte) ([]byte, error) {
	if len(data) < lz4HeaderSize {
		return nil, fmt.Errorf("data too short for lz4: %d bytes", len(data))
	}
	size := int(binary.LittleEndian.Uint32(data))
	payload := data[lz4HeaderSize:]

	switch data[4] {
	case lz4Raw:
		if len(payload) != size {
			return nil, fmt.Errorf("lz4 raw payload is %d bytes, header says %d", len(payload), size)
		}
		return append([]byte(nil), payload...), nil
	case lz4Block:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompressed %d bytes, header says %d", n, size)
		}
		return out, nil
	default:
		return nil, errors.New("lz4: unknown block mode")
	}
}

// Params returns no parameters.
func (f *LZ4Filter) Params() []uint32 {
	return nil
}
