// Package grid describes the level geometry of a multilevel decomposition.
//
// A field of shape n is reduced one level at a time: along every axis the
// coarse nodes are the even indices plus the last index of an even-length
// line, so an axis of extent n keeps (n>>1)+1 nodes. Level i's coefficients
// occupy the region LevelShape(i) minus LevelShape(i-1) of the row-major
// coefficient array, anchored at the origin.
package grid

import (
	"math/bits"

	"github.com/scigolib/mdr/internal/utils"
)

// Geometry holds the per-level shapes of one decomposition.
type Geometry struct {
	Shape  []uint32
	Levels [][]uint32 // Levels[0] is the coarsest, Levels[len-1] == Shape.
}

// MaxTargetLevel returns floor(log2(min(shape))) - 1.
// The result is negative when no decomposition is possible.
func MaxTargetLevel(shape []uint32) int {
	if len(shape) == 0 {
		return -1
	}
	minDim := shape[0]
	for _, d := range shape[1:] {
		if d < minDim {
			minDim = d
		}
	}
	if minDim == 0 {
		return -1
	}
	return bits.Len32(minDim) - 2
}

// New computes the level shapes for targetLevel+1 levels.
func New(shape []uint32, targetLevel int) (*Geometry, error) {
	if _, err := utils.ElementCount(shape); err != nil {
		return nil, utils.ConfigErrorf("shape", "%v", err)
	}
	if targetLevel < 0 {
		return nil, utils.ConfigErrorf("target level", "%d is negative", targetLevel)
	}
	if maxLevel := MaxTargetLevel(shape); targetLevel > maxLevel {
		return nil, utils.ConfigErrorf("target level", "%d exceeds maximum %d for shape %v", targetLevel, maxLevel, shape)
	}

	levels := make([][]uint32, targetLevel+1)
	levels[targetLevel] = append([]uint32(nil), shape...)
	for j := targetLevel; j > 0; j-- {
		coarse := make([]uint32, len(shape))
		for d, n := range levels[j] {
			coarse[d] = (n >> 1) + 1
		}
		levels[j-1] = coarse
	}

	return &Geometry{
		Shape:  append([]uint32(nil), shape...),
		Levels: levels,
	}, nil
}

// NumLevels returns the number of levels.
func (g *Geometry) NumLevels() int {
	return len(g.Levels)
}

// TargetLevel returns the index of the finest level.
func (g *Geometry) TargetLevel() int {
	return len(g.Levels) - 1
}

// LevelShape returns the shape of level i.
func (g *Geometry) LevelShape(i int) []uint32 {
	return g.Levels[i]
}

// PrevShape returns the shape of level i-1, or nil for level 0.
func (g *Geometry) PrevShape(i int) []uint32 {
	if i == 0 {
		return nil
	}
	return g.Levels[i-1]
}

// LevelCount returns the number of coefficients introduced at level i.
func (g *Geometry) LevelCount(i int) int {
	return RegionSize(g.Levels[i]) - RegionSize(g.PrevShape(i))
}

// RegionSize returns the number of points in a region, zero for nil.
func RegionSize(shape []uint32) int {
	if shape == nil {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// Strides returns row-major strides for shape, last axis fastest.
func Strides(shape []uint32) []int {
	strides := make([]int, len(shape))
	s := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = s
		s *= int(shape[d])
	}
	return strides
}

// InRegion reports whether coord lies inside the origin-anchored region.
// A nil region contains nothing.
func InRegion(coord []int, region []uint32) bool {
	if region == nil {
		return false
	}
	for d, c := range coord {
		if c >= int(region[d]) {
			return false
		}
	}
	return true
}

// ForEach visits every coordinate of region in row-major order, passing the
// coordinate and its offset in an array of the given full shape. The coord
// slice is reused between calls.
func ForEach(full, region []uint32, fn func(coord []int, offset int)) {
	if RegionSize(region) == 0 {
		return
	}
	strides := Strides(full)
	coord := make([]int, len(region))
	offset := 0
	for {
		fn(coord, offset)

		d := len(region) - 1
		for ; d >= 0; d-- {
			coord[d]++
			offset += strides[d]
			if coord[d] < int(region[d]) {
				break
			}
			offset -= coord[d] * strides[d]
			coord[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// ForEachLine visits every 1-D line along axis inside region, passing the
// offset of the line's first point. Points of a line are stride apart,
// where stride is Strides(full)[axis].
func ForEachLine(full, region []uint32, axis int, fn func(base int)) {
	outer := append([]uint32(nil), region...)
	outer[axis] = 1
	ForEach(full, outer, func(_ []int, offset int) {
		fn(offset)
	})
}
