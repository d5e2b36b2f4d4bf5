// Package decompose implements multilevel transforms that reorganize a field
// in place so that each level's coefficients can be located from the level
// geometry alone.
package decompose

import (
	"github.com/scigolib/mdr/internal/grid"
	"github.com/scigolib/mdr/internal/utils"
)

// Decomposer transforms a row-major field into its multilevel coefficients and back.
type Decomposer interface {
	// Name returns the registry name of the transform.
	Name() string

	// Decompose transforms data in place into targetLevel+1 levels.
	Decompose(data []float64, shape []uint32, targetLevel int) error

	// Recompose inverts Decompose.
	Recompose(data []float64, shape []uint32, targetLevel int) error
}

// Strategy names.
const (
	Hierarchical = "hierarchical"
	Orthogonal   = "orthogonal"
)

// New returns the decomposer registered under name.
func New(name string) (Decomposer, error) {
	switch name {
	case Hierarchical:
		return NewHierarchical(), nil
	case Orthogonal, "":
		return NewOrthogonal(), nil
	default:
		return nil, utils.ConfigErrorf("decomposer", "unknown strategy %q", name)
	}
}

// lineTransform works on one gathered line of n nodes.
type lineTransform interface {
	forward(line, scratch []float64)
	inverse(line, scratch []float64)
}

// multilevel drives a line transform over every axis of every level.
type multilevel struct {
	name string
	line lineTransform
}

func (m *multilevel) Name() string { return m.name }

func (m *multilevel) Decompose(data []float64, shape []uint32, targetLevel int) error {
	g, err := prepare(data, shape, targetLevel)
	if err != nil {
		return err
	}
	for j := g.TargetLevel(); j > 0; j-- {
		region := g.LevelShape(j)
		for axis := range shape {
			m.apply(data, shape, region, axis, m.line.forward)
		}
	}
	return nil
}

func (m *multilevel) Recompose(data []float64, shape []uint32, targetLevel int) error {
	g, err := prepare(data, shape, targetLevel)
	if err != nil {
		return err
	}
	for j := 1; j <= g.TargetLevel(); j++ {
		region := g.LevelShape(j)
		for axis := len(shape) - 1; axis >= 0; axis-- {
			m.apply(data, shape, region, axis, m.line.inverse)
		}
	}
	return nil
}

func (m *multilevel) apply(data []float64, shape, region []uint32, axis int, fn func(line, scratch []float64)) {
	n := int(region[axis])
	if n < 3 {
		return // no fine nodes along this axis
	}
	stride := grid.Strides(shape)[axis]
	line := utils.GetCoefficients(n)
	scratch := utils.GetCoefficients(n)
	defer utils.ReleaseCoefficients(line)
	defer utils.ReleaseCoefficients(scratch)

	grid.ForEachLine(shape, region, axis, func(base int) {
		for k := 0; k < n; k++ {
			line[k] = data[base+k*stride]
		}
		fn(line, scratch)
		for k := 0; k < n; k++ {
			data[base+k*stride] = line[k]
		}
	})
}

func prepare(data []float64, shape []uint32, targetLevel int) (*grid.Geometry, error) {
	g, err := grid.New(shape, targetLevel)
	if err != nil {
		return nil, err
	}
	if n := grid.RegionSize(shape); len(data) != n {
		return nil, utils.ConfigErrorf("data", "length %d does not match shape %v (%d)", len(data), shape, n)
	}
	return g, nil
}

// coarseCount returns the number of coarse nodes of a line of n nodes.
func coarseCount(n int) int {
	return (n >> 1) + 1
}

// split reorders a line so coarse nodes come first, in order, followed by
// the fine nodes. Coarse nodes are the even indices and, for even n, the
// last index.
func split(line, scratch []float64) {
	n := len(line)
	nc := coarseCount(n)
	copy(scratch, line)
	c, f := 0, nc
	for k := 0; k < n; k++ {
		if isCoarse(k, n) {
			line[c] = scratch[k]
			c++
		} else {
			line[f] = scratch[k]
			f++
		}
	}
}

// merge inverts split.
func merge(line, scratch []float64) {
	n := len(line)
	nc := coarseCount(n)
	copy(scratch, line)
	c, f := 0, nc
	for k := 0; k < n; k++ {
		if isCoarse(k, n) {
			line[k] = scratch[c]
			c++
		} else {
			line[k] = scratch[f]
			f++
		}
	}
}

func isCoarse(k, n int) bool {
	return k%2 == 0 || k == n-1
}

// coarseIndex maps the c-th coarse node to its index in the fine line.
func coarseIndex(c, n int) int {
	return min(2*c, n-1)
}
