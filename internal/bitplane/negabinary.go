package bitplane

import (
	"math"

	"github.com/scigolib/mdr/internal/utils"
)

// negaBinaryMask converts between two's complement and base -2.
const negaBinaryMask uint64 = 0xAAAAAAAAAAAAAAAA

// negaBinaryEncoder stores base -2 digits, which need no sign plane. The
// truncated value may overshoot, so the error of a prefix is measured rather
// than bounded and is not guaranteed to shrink with every plane.
type negaBinaryEncoder struct{}

// NewNegaBinary returns the nega-binary encoder.
func NewNegaBinary() Encoder {
	return negaBinaryEncoder{}
}

func (negaBinaryEncoder) Name() string { return NegaBinary }

// scale leaves two digits of headroom: numPlanes base -2 digits cover
// every integer of magnitude below 2^(numPlanes-2).
func (negaBinaryEncoder) scale(numPlanes int) int {
	return numPlanes - 2
}

func (e negaBinaryEncoder) Encode(data []float64, exp, numPlanes int) (*Result, error) {
	if err := checkPlanes(numPlanes); err != nil {
		return nil, err
	}
	if allZero(data) {
		return emptyResult(numPlanes), nil
	}

	shift := e.scale(numPlanes) - exp
	limit := math.Ldexp(1, e.scale(numPlanes))
	digits := make([]uint64, len(data))
	for i, v := range data {
		x := math.Trunc(math.Ldexp(v, shift))
		if math.Abs(x) >= limit && limit >= 1 || math.IsNaN(v) {
			return nil, utils.ConfigErrorf("exponent", "%d too small for value %g", exp, v)
		}
		digits[i] = toNegaBinary(int64(x))
	}

	words := wordCount(len(data))
	planes := make([][]byte, numPlanes)
	for k := 0; k < numPlanes; k++ {
		plane := make([]byte, 4*words)
		packBits(plane, digits, numPlanes-1-k)
		planes[k] = plane
	}

	errs := make([]float64, numPlanes+1)
	for k := 0; k <= numPlanes; k++ {
		mask := keepMask(numPlanes, k)
		var sum float64
		for i, v := range data {
			d := v - math.Ldexp(float64(fromNegaBinary(digits[i]&mask)), -shift)
			sum += d * d
		}
		errs[k] = sum
	}

	return &Result{
		Planes:        planes,
		Sizes:         sizesOf(planes),
		SquaredErrors: errs,
	}, nil
}

func (e negaBinaryEncoder) Decode(planes [][]byte, count, exp, numPlanes, k int) ([]float64, error) {
	if err := checkDecode(planes, count, numPlanes, k); err != nil {
		return nil, err
	}
	out := make([]float64, count)
	if k == 0 || len(planes[0]) == 0 {
		return out, nil
	}

	digits := make([]uint64, count)
	for j := 0; j < k; j++ {
		if err := unpackBits(planes[j], digits, numPlanes-1-j); err != nil {
			return nil, err
		}
	}
	shift := e.scale(numPlanes) - exp
	for i, d := range digits {
		out[i] = math.Ldexp(float64(fromNegaBinary(d)), -shift)
	}
	return out, nil
}

func toNegaBinary(x int64) uint64 {
	return (uint64(x) + negaBinaryMask) ^ negaBinaryMask //nolint:gosec // G115: two's complement reinterpretation
}

func fromNegaBinary(d uint64) int64 {
	return int64((d ^ negaBinaryMask) - negaBinaryMask) //nolint:gosec // G115: two's complement reinterpretation
}
