package kvstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Records are little-endian packed sequences with no length prefix; the
// element count is implied by the record size.

// EncodeUint32s packs a uint32 sequence.
func EncodeUint32s(v []uint32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], x)
	}
	return buf
}

// DecodeUint32s unpacks a uint32 sequence.
func DecodeUint32s(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("uint32 record has %d bytes", len(b))
	}
	v := make([]uint32, len(b)/4)
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return v, nil
}

// EncodeUint64s packs a uint64 sequence.
func EncodeUint64s(v []uint64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], x)
	}
	return buf
}

// DecodeUint64s unpacks a uint64 sequence.
func DecodeUint64s(b []byte) ([]uint64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("uint64 record has %d bytes", len(b))
	}
	v := make([]uint64, len(b)/8)
	for i := range v {
		v[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return v, nil
}

// EncodeFloat64s packs a float64 sequence.
func EncodeFloat64s(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

// DecodeFloat64s unpacks a float64 sequence.
func DecodeFloat64s(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("float64 record has %d bytes", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}

// EncodeUint32 packs a single value.
func EncodeUint32(v uint32) []byte { return EncodeUint32s([]uint32{v}) }

// DecodeUint32 unpacks a single value.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("uint32 scalar has %d bytes", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// EncodeInt32 packs a single signed value.
func EncodeInt32(v int32) []byte { return EncodeUint32(uint32(v)) } //nolint:gosec // G115: bit reinterpretation

// DecodeInt32 unpacks a single signed value.
func DecodeInt32(b []byte) (int32, error) {
	v, err := DecodeUint32(b)
	return int32(v), err //nolint:gosec // G115: bit reinterpretation
}

// EncodeUint64 packs a single value.
func EncodeUint64(v uint64) []byte { return EncodeUint64s([]uint64{v}) }

// DecodeUint64 unpacks a single value.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("uint64 scalar has %d bytes", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// EncodeMatrix packs a rectangular float64 table row-major and returns its
// {rows, cols} shape record.
func EncodeMatrix(rows [][]float64) (shape, flat []byte, err error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	values := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, nil, fmt.Errorf("row %d has %d columns, want %d", i, len(r), cols)
		}
		values = append(values, r...)
	}
	return EncodeUint64s([]uint64{uint64(len(rows)), uint64(cols)}), EncodeFloat64s(values), nil
}

// DecodeMatrix reverses EncodeMatrix.
func DecodeMatrix(shape, flat []byte) ([][]float64, error) {
	dims, err := DecodeUint64s(shape)
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("matrix shape has %d dimensions", len(dims))
	}
	values, err := DecodeFloat64s(flat)
	if err != nil {
		return nil, err
	}
	n, cols := dims[0], dims[1]
	if n*cols != uint64(len(values)) || (cols != 0 && n != uint64(len(values))/cols) {
		return nil, fmt.Errorf("matrix shape %dx%d does not match %d values", n, cols, len(values))
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = values[uint64(i)*cols : uint64(i+1)*cols]
	}
	return rows, nil
}
