// Package bitplane encodes a level's coefficients as an ordered sequence of
// precision increments. Plane 0 carries the most significant bits; decoding
// the first k planes yields an approximation whose squared error is reported
// by the encoder at index k.
package bitplane

import (
	"encoding/binary"
	"math"

	"github.com/scigolib/mdr/internal/utils"
)

// MaxPlanes is the largest supported number of planes per level.
const MaxPlanes = 60

// Result is the encoded form of one level.
type Result struct {
	Planes        [][]byte
	Sizes         []uint32
	SquaredErrors []float64 // len(Planes)+1 entries; [0] is the energy of the level
}

// Encoder turns one level's coefficients into bitplanes.
type Encoder interface {
	// Name returns the registry name of the encoder.
	Name() string

	// Encode encodes data using exp as the exponent of the level's largest
	// magnitude (see Exponent).
	Encode(data []float64, exp, numPlanes int) (*Result, error)

	// Decode reconstructs count coefficients from the first k planes.
	Decode(planes [][]byte, count, exp, numPlanes, k int) ([]float64, error)
}

// Strategy names.
const (
	Grouped    = "grouped"
	PerBit     = "perbit"
	NegaBinary = "negabinary"
)

// New returns the encoder registered under name.
func New(name string) (Encoder, error) {
	switch name {
	case Grouped, "":
		return NewGrouped(), nil
	case PerBit:
		return NewPerBit(), nil
	case NegaBinary:
		return NewNegaBinary(), nil
	default:
		return nil, utils.ConfigErrorf("encoder", "unknown strategy %q", name)
	}
}

// LevelMax returns the largest magnitude in data.
func LevelMax(data []float64) float64 {
	var m float64
	for _, v := range data {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Exponent returns e such that levelMax < 2^e, as math.Frexp does.
func Exponent(levelMax float64) int {
	_, exp := math.Frexp(levelMax)
	return exp
}

func checkPlanes(numPlanes int) error {
	if numPlanes < 1 || numPlanes > MaxPlanes {
		return utils.ConfigErrorf("number of planes", "%d outside [1, %d]", numPlanes, MaxPlanes)
	}
	return nil
}

func checkDecode(planes [][]byte, count, numPlanes, k int) error {
	if err := checkPlanes(numPlanes); err != nil {
		return err
	}
	if count < 0 {
		return utils.ConfigErrorf("count", "%d is negative", count)
	}
	if k < 0 || k > numPlanes || k > len(planes) {
		return utils.ConfigErrorf("plane count", "%d outside [0, %d]", k, min(numPlanes, len(planes)))
	}
	return nil
}

// emptyResult is the encoding of an all-zero level: every plane is empty and
// every error is zero.
func emptyResult(numPlanes int) *Result {
	return &Result{
		Planes:        make([][]byte, numPlanes),
		Sizes:         make([]uint32, numPlanes),
		SquaredErrors: make([]float64, numPlanes+1),
	}
}

func allZero(data []float64) bool {
	for _, v := range data {
		if v != 0 {
			return false
		}
	}
	return true
}

// magnitudes converts data to sign-magnitude fixed point with numPlanes
// integer bits: fixed = trunc(|v| * 2^(numPlanes-exp)).
func magnitudes(data []float64, exp, numPlanes int) (fixed []uint64, negative []bool, err error) {
	fixed = make([]uint64, len(data))
	negative = make([]bool, len(data))
	limit := uint64(1) << numPlanes
	for i, v := range data {
		f := uint64(math.Ldexp(math.Abs(v), numPlanes-exp))
		if f >= limit || math.IsNaN(v) {
			return nil, nil, utils.ConfigErrorf("exponent", "%d too small for value %g", exp, v)
		}
		fixed[i] = f
		negative[i] = math.Signbit(v)
	}
	return fixed, negative, nil
}

// keepMask clears the bits below the first k of numPlanes planes.
func keepMask(numPlanes, k int) uint64 {
	return ^(uint64(1)<<(numPlanes-k) - 1)
}

// truncationErrors measures the squared error of sign-magnitude truncation
// after 0..numPlanes planes.
func truncationErrors(data []float64, fixed []uint64, exp, numPlanes int) []float64 {
	errs := make([]float64, numPlanes+1)
	for k := 0; k <= numPlanes; k++ {
		mask := keepMask(numPlanes, k)
		var sum float64
		for i, v := range data {
			d := math.Abs(v) - math.Ldexp(float64(fixed[i]&mask), exp-numPlanes)
			sum += d * d
		}
		errs[k] = sum
	}
	return errs
}

func wordCount(count int) int {
	return (count + 31) / 32
}

// packBits stores bit b of every value, 32 elements per little-endian word.
func packBits(dst []byte, values []uint64, b int) {
	for w := 0; w*32 < len(values); w++ {
		var word uint32
		end := min(len(values), (w+1)*32)
		for i := w * 32; i < end; i++ {
			word |= uint32((values[i]>>b)&1) << (i - w*32)
		}
		binary.LittleEndian.PutUint32(dst[w*4:], word)
	}
}

// unpackBits ORs packed bits from src into bit b of every value.
func unpackBits(src []byte, values []uint64, b int) error {
	if len(src) < wordCount(len(values))*4 {
		return utils.ConfigErrorf("plane", "%d bytes too short for %d elements", len(src), len(values))
	}
	for w := 0; w*32 < len(values); w++ {
		word := binary.LittleEndian.Uint32(src[w*4:])
		end := min(len(values), (w+1)*32)
		for i := w * 32; i < end; i++ {
			values[i] |= uint64((word>>(i-w*32))&1) << b
		}
	}
	return nil
}

func sizesOf(planes [][]byte) []uint32 {
	sizes := make([]uint32, len(planes))
	for i, p := range planes {
		sizes[i] = uint32(len(p)) //nolint:gosec // G115: a plane holds at most 2^40/8 bytes
	}
	return sizes
}
