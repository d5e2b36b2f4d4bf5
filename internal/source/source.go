// Package source loads the floating-point fields to refactor.
package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/scigolib/mdr/internal/utils"
)

// Field is one named N-dimensional variable, stored row-major.
type Field struct {
	Name  string
	Shape []uint32
	Type  string // "float" or "double", as read from the source
	Data  []float64
}

// Validate checks that Data covers Shape.
func (f *Field) Validate() error {
	n, err := utils.ElementCount(f.Shape)
	if err != nil {
		return utils.ConfigErrorf("shape", "%s: %v", f.Name, err)
	}
	if n != len(f.Data) {
		return utils.ConfigErrorf("shape", "%s: %v covers %d values, data has %d", f.Name, f.Shape, n, len(f.Data))
	}
	return nil
}

// Source yields the fields of one input.
type Source interface {
	Fields(ctx context.Context) ([]Field, error)
}

// Prefix returns the input's base name without extension, used to name
// fragment files.
func Prefix(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open picks a source by file extension: .h5/.hdf5/.nc read as HDF5,
// .f32/.f64/.bin as raw little-endian values of shape.
func Open(path string, shape []uint32) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h5", ".hdf5", ".he5", ".nc":
		return &HDF5Source{Path: path, Shape: shape}, nil
	case ".f32":
		return &RawSource{Path: path, Shape: shape, Single: true}, nil
	case ".f64", ".bin", ".dat":
		return &RawSource{Path: path, Shape: shape}, nil
	default:
		return nil, utils.ConfigErrorf("input", "cannot tell the format of %s", path)
	}
}

// RawSource reads a headerless little-endian array as a single field
// named after the file.
type RawSource struct {
	Path   string
	Shape  []uint32 // nil reads a 1-D field
	Single bool     // float32 elements
}

// Fields implements Source.
func (s *RawSource) Fields(ctx context.Context) ([]Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	field, err := DecodeRaw(Prefix(s.Path), raw, s.Single, s.Shape)
	if err != nil {
		return nil, err
	}
	return []Field{field}, nil
}

// DecodeRaw converts little-endian float32 or float64 bytes into a field.
func DecodeRaw(name string, raw []byte, single bool, shape []uint32) (Field, error) {
	size := 8
	typ := "double"
	if single {
		size, typ = 4, "float"
	}
	if len(raw)%size != 0 {
		return Field{}, utils.ConfigErrorf("input", "%s: %d bytes is not a whole number of %s values", name, len(raw), typ)
	}

	data := make([]float64, len(raw)/size)
	for i := range data {
		if single {
			data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
		} else {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	}

	if shape == nil {
		shape = []uint32{uint32(len(data))} //nolint:gosec // G115: checked by Validate
	}
	field := Field{Name: name, Shape: append([]uint32{}, shape...), Type: typ, Data: data}
	if err := field.Validate(); err != nil {
		return Field{}, err
	}
	return field, nil
}

// EncodeRaw is the inverse of DecodeRaw, used to write reconstructions.
func EncodeRaw(data []float64, single bool) []byte {
	if single {
		out := make([]byte, 4*len(data))
		for i, v := range data {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(v)))
		}
		return out
	}
	out := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}
