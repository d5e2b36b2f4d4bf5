package compressor

import (
	"encoding/binary"
	"fmt"
)

// Fletcher32Filter appends a Fletcher32 checksum on compression and verifies
// and strips it on decompression.
type Fletcher32Filter struct{}

// NewFletcher32Filter creates a Fletcher32 checksum filter.
func NewFletcher32Filter() *Fletcher32Filter {
	return &Fletcher32Filter{}
}

// ID returns the registry identifier for Fletcher32.
func (f *Fletcher32Filter) ID() FilterID {
	return FilterFletcher32
}

// Name returns the filter name.
func (f *Fletcher32Filter) Name() string {
	return "fletcher32"
}

// Apply calculates the checksum and appends it in little-endian order.
func (f *Fletcher32Filter) Apply(data []byte) ([]byte, error) {
	result := make([]byte, len(data)+4)
	copy(result, data)
	binary.LittleEndian.PutUint32(result[len(data):], calculateFletcher32(data))
	return result, nil
}

// Remove verifies and strips the checksum.
// Returns an error if the checksum doesn't match.
func (f *Fletcher32Filter) Remove(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for fletcher32: %d bytes", len(data))
	}

	dataLen := len(data) - 4
	original := data[:dataLen]
	stored := binary.LittleEndian.Uint32(data[dataLen:])

	if calculated := calculateFletcher32(original); calculated != stored {
		return nil, fmt.Errorf("fletcher32 checksum mismatch: stored=%08x, calculated=%08x",
			stored, calculated)
	}

	return original, nil
}

// Params returns no parameters.
func (f *Fletcher32Filter) Params() []uint32 {
	return nil
}

// calculateFletcher32 sums 16-bit little-endian words modulo 65535. An odd
// trailing byte is treated as a word with a zero high byte.
func calculateFletcher32(data []byte) uint32 {
	var sum1, sum2 uint32

	i := 0
	for i+1 < len(data) {
		word := uint32(data[i]) | uint32(data[i+1])<<8
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
		i += 2
	}

	if i < len(data) {
		sum1 = (sum1 + uint32(data[i])) % 65535
		sum2 = (sum2 + sum1) % 65535
	}

	return (sum2 << 16) | sum1
}
