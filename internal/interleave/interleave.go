// Package interleave extracts the coefficients introduced at one level from
// the full coefficient array, and puts them back.
package interleave

import (
	"sort"

	"github.com/scigolib/mdr/internal/grid"
	"github.com/scigolib/mdr/internal/utils"
)

// Interleaver copies a level's new coefficients to and from a contiguous buffer.
type Interleaver interface {
	// Name returns the registry name of the ordering.
	Name() string

	// Interleave copies the coefficients of levelShape that are not in
	// prevShape from full into out. A nil prevShape selects every
	// coefficient of levelShape.
	Interleave(full []float64, shape, levelShape, prevShape []uint32, out []float64) error

	// Reposition writes buf back to the positions Interleave read from.
	Reposition(buf []float64, shape, levelShape, prevShape []uint32, full []float64) error
}

// Strategy names.
const (
	Direct  = "direct"
	SFC     = "sfc"
	Blocked = "blocked"
)

// DefaultBlockSize is the tile edge of the blocked ordering.
const DefaultBlockSize = 8

// New returns the interleaver registered under name.
func New(name string) (Interleaver, error) {
	switch name {
	case Direct, "":
		return NewDirect(), nil
	case SFC:
		return NewSFC(), nil
	case Blocked:
		return NewBlocked(DefaultBlockSize), nil
	default:
		return nil, utils.ConfigErrorf("interleaver", "unknown strategy %q", name)
	}
}

// orderFunc lists the full-array offsets of a level's new coefficients.
type orderFunc func(shape, levelShape, prevShape []uint32) []int

type ordered struct {
	name  string
	order orderFunc
}

// NewDirect returns the row-major interleaver.
func NewDirect() Interleaver {
	return &ordered{name: Direct, order: rowMajor}
}

// NewSFC returns the Morton-order interleaver.
func NewSFC() Interleaver {
	return &ordered{name: SFC, order: morton}
}

// NewBlocked returns an interleaver that walks tiles of edge size in
// row-major order and the points of each tile in row-major order.
func NewBlocked(size int) Interleaver {
	if size < 1 {
		size = DefaultBlockSize
	}
	return &ordered{name: Blocked, order: func(shape, levelShape, prevShape []uint32) []int {
		return blocked(shape, levelShape, prevShape, size)
	}}
}

func (o *ordered) Name() string { return o.name }

func (o *ordered) Interleave(full []float64, shape, levelShape, prevShape []uint32, out []float64) error {
	offsets, err := o.offsets(len(full), shape, levelShape, prevShape, len(out))
	if err != nil {
		return err
	}
	for i, off := range offsets {
		out[i] = full[off]
	}
	return nil
}

func (o *ordered) Reposition(buf []float64, shape, levelShape, prevShape []uint32, full []float64) error {
	offsets, err := o.offsets(len(full), shape, levelShape, prevShape, len(buf))
	if err != nil {
		return err
	}
	for i, off := range offsets {
		full[off] = buf[i]
	}
	return nil
}

func (o *ordered) offsets(fullLen int, shape, levelShape, prevShape []uint32, bufLen int) ([]int, error) {
	if grid.RegionSize(shape) != fullLen {
		return nil, utils.ConfigErrorf("coefficients", "length %d does not match shape %v", fullLen, shape)
	}
	if len(levelShape) != len(shape) || (prevShape != nil && len(prevShape) != len(shape)) {
		return nil, utils.ConfigErrorf("level shape", "rank mismatch with shape %v", shape)
	}
	for d := range shape {
		if levelShape[d] > shape[d] || (prevShape != nil && prevShape[d] > levelShape[d]) {
			return nil, utils.ConfigErrorf("level shape", "%v not nested in %v", levelShape, shape)
		}
	}
	want := grid.RegionSize(levelShape) - grid.RegionSize(prevShape)
	if bufLen != want {
		return nil, utils.ConfigErrorf("level buffer", "length %d, level holds %d coefficients", bufLen, want)
	}
	return o.order(shape, levelShape, prevShape), nil
}

func rowMajor(shape, levelShape, prevShape []uint32) []int {
	offsets := make([]int, 0, grid.RegionSize(levelShape)-grid.RegionSize(prevShape))
	grid.ForEach(shape, levelShape, func(coord []int, off int) {
		if !grid.InRegion(coord, prevShape) {
			offsets = append(offsets, off)
		}
	})
	return offsets
}

func morton(shape, levelShape, prevShape []uint32) []int {
	type entry struct {
		key uint64
		off int
	}
	entries := make([]entry, 0, grid.RegionSize(levelShape)-grid.RegionSize(prevShape))
	grid.ForEach(shape, levelShape, func(coord []int, off int) {
		if !grid.InRegion(coord, prevShape) {
			entries = append(entries, entry{key: mortonKey(coord), off: off})
		}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	offsets := make([]int, len(entries))
	for i, e := range entries {
		offsets[i] = e.off
	}
	return offsets
}

// mortonKey interleaves the coordinate bits, first axis most significant.
func mortonKey(coord []int) uint64 {
	var key uint64
	bitsPerAxis := 64 / len(coord)
	for b := bitsPerAxis - 1; b >= 0; b-- {
		for _, c := range coord {
			key = key<<1 | uint64(c>>b)&1
		}
	}
	return key
}

func blocked(shape, levelShape, prevShape []uint32, size int) []int {
	offsets := make([]int, 0, grid.RegionSize(levelShape)-grid.RegionSize(prevShape))
	tiles := make([]uint32, len(levelShape))
	for d, n := range levelShape {
		tiles[d] = uint32((int(n) + size - 1) / size)
	}
	strides := grid.Strides(shape)
	tile := make([]uint32, len(levelShape))
	coord := make([]int, len(levelShape))

	grid.ForEach(tiles, tiles, func(tc []int, _ int) {
		for d := range tc {
			tile[d] = uint32(min(size, int(levelShape[d])-tc[d]*size))
		}
		grid.ForEach(tile, tile, func(local []int, _ int) {
			off := 0
			for d := range local {
				coord[d] = tc[d]*size + local[d]
				off += coord[d] * strides[d]
			}
			if !grid.InRegion(coord, prevShape) {
				offsets = append(offsets, off)
			}
		})
	})
	return offsets
}
