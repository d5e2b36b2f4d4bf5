package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/scigolib/hdf5"

	"github.com/scigolib/mdr/internal/utils"
)

// ShapeAttributes are the dataset attributes consulted, in order, for the
// field's shape. Files written with github.com/scigolib/hdf5 v0.13.0 can
// carry such an attribute only on the last dataset created; an attribute
// written before a later CreateDataset leaves the file unreadable.
var ShapeAttributes = []string{"shape", "dims", "dimensions"}

// HDF5Source reads every numeric dataset of an HDF5 file.
//
// The reader returns flattened values, so each field's shape comes from
// Shapes[name], then Shape, then a shape attribute on the dataset, and
// finally falls back to 1-D.
type HDF5Source struct {
	Path   string
	Shape  []uint32
	Shapes map[string][]uint32
	// Variables restricts the fields read; empty reads all.
	Variables []string
}

// Fields implements Source. Datasets that cannot be read as numbers
// (strings, compounds) are skipped.
func (s *HDF5Source) Fields(ctx context.Context) ([]Field, error) {
	f, err := hdf5.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	var datasets []*hdf5.Dataset
	var paths []string
	f.Walk(func(path string, obj hdf5.Object) {
		if ds, ok := obj.(*hdf5.Dataset); ok && s.wanted(path) {
			datasets = append(datasets, ds)
			paths = append(paths, path)
		}
	})

	var fields []Field
	for i, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := ds.Read()
		if err != nil {
			continue
		}
		field := Field{Name: paths[i], Type: "double", Data: data}
		field.Shape, err = s.shapeOf(paths[i], ds, len(data))
		if err != nil {
			return nil, err
		}
		if err := field.Validate(); err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	if len(fields) == 0 {
		return nil, utils.ConfigErrorf("input", "%s holds no numeric datasets", s.Path)
	}
	sort.Slice(fields, func(a, b int) bool { return fields[a].Name < fields[b].Name })
	return fields, nil
}

func (s *HDF5Source) wanted(path string) bool {
	if len(s.Variables) == 0 {
		return true
	}
	for _, v := range s.Variables {
		if v == path || "/"+v == path {
			return true
		}
	}
	return false
}

func (s *HDF5Source) shapeOf(path string, ds *hdf5.Dataset, n int) ([]uint32, error) {
	if shape, ok := s.Shapes[path]; ok {
		return shape, nil
	}
	if s.Shape != nil {
		return s.Shape, nil
	}
	for _, name := range ShapeAttributes {
		value, err := ds.ReadAttribute(name)
		if err != nil {
			continue
		}
		shape, err := shapeFromAttribute(value)
		if err != nil {
			return nil, utils.ConfigErrorf("shape", "%s attribute %q: %v", path, name, err)
		}
		return shape, nil
	}
	return []uint32{uint32(n)}, nil //nolint:gosec // G115: checked by Validate
}

func shapeFromAttribute(value interface{}) ([]uint32, error) {
	var dims []int64
	switch v := value.(type) {
	case int32:
		dims = []int64{int64(v)}
	case int64:
		dims = []int64{v}
	case []int32:
		for _, d := range v {
			dims = append(dims, int64(d))
		}
	case []int64:
		dims = v
	case []float64:
		for _, d := range v {
			dims = append(dims, int64(d))
		}
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}

	shape := make([]uint32, len(dims))
	for i, d := range dims {
		if d <= 0 || d > int64(^uint32(0)) {
			return nil, fmt.Errorf("extent %d out of range", d)
		}
		shape[i] = uint32(d)
	}
	return shape, nil
}
