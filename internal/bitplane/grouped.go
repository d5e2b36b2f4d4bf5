package bitplane

import "math"

// groupedEncoder packs one bit of every coefficient per plane into 32-bit
// words. Plane 0 is prefixed with the sign bitmap.
type groupedEncoder struct{}

// NewGrouped returns the grouped sign-magnitude encoder.
func NewGrouped() Encoder {
	return groupedEncoder{}
}

func (groupedEncoder) Name() string { return Grouped }

func (groupedEncoder) Encode(data []float64, exp, numPlanes int) (*Result, error) {
	if err := checkPlanes(numPlanes); err != nil {
		return nil, err
	}
	if allZero(data) {
		return emptyResult(numPlanes), nil
	}
	fixed, negative, err := magnitudes(data, exp, numPlanes)
	if err != nil {
		return nil, err
	}

	words := wordCount(len(data))
	planes := make([][]byte, numPlanes)
	for k := 0; k < numPlanes; k++ {
		b := numPlanes - 1 - k
		if k == 0 {
			plane := make([]byte, 8*words)
			packSigns(plane[:4*words], negative)
			packBits(plane[4*words:], fixed, b)
			planes[k] = plane
			continue
		}
		plane := make([]byte, 4*words)
		packBits(plane, fixed, b)
		planes[k] = plane
	}

	return &Result{
		Planes:        planes,
		Sizes:         sizesOf(planes),
		SquaredErrors: truncationErrors(data, fixed, exp, numPlanes),
	}, nil
}

func (groupedEncoder) Decode(planes [][]byte, count, exp, numPlanes, k int) ([]float64, error) {
	if err := checkDecode(planes, count, numPlanes, k); err != nil {
		return nil, err
	}
	out := make([]float64, count)
	if k == 0 || len(planes[0]) == 0 {
		return out, nil
	}

	words := wordCount(count)
	fixed := make([]uint64, count)
	signs := make([]uint64, count)
	if err := unpackBits(planes[0], signs, 0); err != nil {
		return nil, err
	}
	if err := unpackBits(planes[0][4*words:], fixed, numPlanes-1); err != nil {
		return nil, err
	}
	for j := 1; j < k; j++ {
		if err := unpackBits(planes[j], fixed, numPlanes-1-j); err != nil {
			return nil, err
		}
	}

	for i := range out {
		v := math.Ldexp(float64(fixed[i]), exp-numPlanes)
		if signs[i] == 1 {
			v = -v
		}
		out[i] = v
	}
	return out, nil
}

func packSigns(dst []byte, negative []bool) {
	bits := make([]uint64, len(negative))
	for i, neg := range negative {
		if neg {
			bits[i] = 1
		}
	}
	packBits(dst, bits, 0)
}
