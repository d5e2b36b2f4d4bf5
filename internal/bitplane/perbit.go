package bitplane

import (
	"bytes"
	"fmt"
	"math"

	"github.com/icza/bitio"
)

// perBitEncoder writes one magnitude bit per coefficient and plane, and the
// sign of a coefficient right after its first 1 bit, so insignificant
// coefficients cost no sign bits.
type perBitEncoder struct{}

// NewPerBit returns the embedded per-bit encoder.
func NewPerBit() Encoder {
	return perBitEncoder{}
}

func (perBitEncoder) Name() string { return PerBit }

func (perBitEncoder) Encode(data []float64, exp, numPlanes int) (*Result, error) {
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

	significant := make([]bool, len(data))
	planes := make([][]byte, numPlanes)
	for k := 0; k < numPlanes; k++ {
		b := numPlanes - 1 - k
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		for i, f := range fixed {
			bit := (f>>b)&1 == 1
			w.TryWriteBool(bit)
			if bit && !significant[i] {
				w.TryWriteBool(negative[i])
				significant[i] = true
			}
		}
		if w.TryError != nil {
			return nil, fmt.Errorf("plane %d: %w", k, w.TryError)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("plane %d: %w", k, err)
		}
		planes[k] = buf.Bytes()
	}

	return &Result{
		Planes:        planes,
		Sizes:         sizesOf(planes),
		SquaredErrors: truncationErrors(data, fixed, exp, numPlanes),
	}, nil
}

func (perBitEncoder) Decode(planes [][]byte, count, exp, numPlanes, k int) ([]float64, error) {
	if err := checkDecode(planes, count, numPlanes, k); err != nil {
		return nil, err
	}
	fixed := make([]uint64, count)
	significant := make([]bool, count)
	negative := make([]bool, count)

	for j := 0; j < k; j++ {
		if len(planes[j]) == 0 {
			continue
		}
		b := numPlanes - 1 - j
		r := bitio.NewReader(bytes.NewReader(planes[j]))
		for i := range fixed {
			if !r.TryReadBool() {
				continue
			}
			fixed[i] |= 1 << b
			if !significant[i] {
				negative[i] = r.TryReadBool()
				significant[i] = true
			}
		}
		if r.TryError != nil {
			return nil, fmt.Errorf("plane %d: %w", j, r.TryError)
		}
	}

	out := make([]float64, count)
	for i, f := range fixed {
		v := math.Ldexp(float64(f), exp-numPlanes)
		if negative[i] {
			v = -v
		}
		out[i] = v
	}
	return out, nil
}
