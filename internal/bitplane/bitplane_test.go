package bitplane

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/mdr/internal/utils"
)

func sampleLevel(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.NormFloat64() * math.Ldexp(1, rng.Intn(6)-3)
	}
	return data
}

func squaredError(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func energy(data []float64) float64 {
	var sum float64
	for _, v := range data {
		sum += v * v
	}
	return sum
}

func TestNew(t *testing.T) {
	for _, name := range []string{Grouped, PerBit, NegaBinary} {
		enc, err := New(name)
		require.NoError(t, err)
		require.Equal(t, name, enc.Name())
	}

	enc, err := New("")
	require.NoError(t, err)
	require.Equal(t, Grouped, enc.Name())

	_, err = New("ezw")
	require.True(t, errors.Is(err, utils.ErrConfiguration))
}

func TestExponent(t *testing.T) {
	require.Equal(t, 0, Exponent(0))
	require.Equal(t, 1, Exponent(1))
	require.Equal(t, 3, Exponent(5.5))
	require.Equal(t, -1, Exponent(0.3))
	require.Equal(t, 5.5, LevelMax([]float64{1, -5.5, 2}))
}

func TestEncode_ReportedErrorsMatchDecode(t *testing.T) {
	data := sampleLevel(203, 3)
	exp := Exponent(LevelMax(data))
	const numPlanes = 24

	for _, enc := range []Encoder{NewGrouped(), NewPerBit(), NewNegaBinary()} {
		t.Run(enc.Name(), func(t *testing.T) {
			res, err := enc.Encode(data, exp, numPlanes)
			require.NoError(t, err)
			require.Len(t, res.Planes, numPlanes)
			require.Len(t, res.Sizes, numPlanes)
			require.Len(t, res.SquaredErrors, numPlanes+1)
			require.InDelta(t, energy(data), res.SquaredErrors[0], 1e-9*energy(data))

			for k := 0; k <= numPlanes; k++ {
				got, err := enc.Decode(res.Planes, len(data), exp, numPlanes, k)
				require.NoError(t, err)
				require.InDelta(t, res.SquaredErrors[k], squaredError(data, got), 1e-9*energy(data), "k=%d", k)
			}
			for k, p := range res.Planes {
				require.Equal(t, uint32(len(p)), res.Sizes[k])
			}
		})
	}
}

func TestEncode_SignMagnitudeErrorsAreMonotone(t *testing.T) {
	data := sampleLevel(500, 11)
	exp := Exponent(LevelMax(data))

	for _, enc := range []Encoder{NewGrouped(), NewPerBit()} {
		res, err := enc.Encode(data, exp, 32)
		require.NoError(t, err)
		for k := 1; k < len(res.SquaredErrors); k++ {
			require.LessOrEqual(t, res.SquaredErrors[k], res.SquaredErrors[k-1], "%s k=%d", enc.Name(), k)
		}
		require.Less(t, res.SquaredErrors[32], 1e-12*energy(data))
	}
}

func TestEncode_GroupedAndPerBitAgree(t *testing.T) {
	data := sampleLevel(77, 5)
	exp := Exponent(LevelMax(data))

	g, err := NewGrouped().Encode(data, exp, 16)
	require.NoError(t, err)
	p, err := NewPerBit().Encode(data, exp, 16)
	require.NoError(t, err)
	require.Equal(t, g.SquaredErrors, p.SquaredErrors)

	// Grouped plane 0 carries the sign bitmap, so it is twice as large.
	words := (len(data) + 31) / 32
	require.Equal(t, uint32(8*words), g.Sizes[0])
	require.Equal(t, uint32(4*words), g.Sizes[1])
}

func TestEncode_AllZeroLevel(t *testing.T) {
	data := make([]float64, 40)
	for _, enc := range []Encoder{NewGrouped(), NewPerBit(), NewNegaBinary()} {
		res, err := enc.Encode(data, Exponent(0), 8)
		require.NoError(t, err)
		require.Len(t, res.Planes, 8)
		for k := range res.Planes {
			require.Zero(t, res.Sizes[k])
		}
		for _, e := range res.SquaredErrors {
			require.Zero(t, e)
		}

		got, err := enc.Decode(res.Planes, len(data), 0, 8, 8)
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestEncode_Errors(t *testing.T) {
	data := []float64{1, 2, 3}
	for _, enc := range []Encoder{NewGrouped(), NewPerBit(), NewNegaBinary()} {
		_, err := enc.Encode(data, 2, 0)
		require.True(t, errors.Is(err, utils.ErrConfiguration), enc.Name())

		_, err = enc.Encode(data, 2, MaxPlanes+1)
		require.True(t, errors.Is(err, utils.ErrConfiguration), enc.Name())

		// 3 needs exponent 2; exponent 1 cannot represent it.
		_, err = enc.Encode(data, 1, 8)
		require.True(t, errors.Is(err, utils.ErrConfiguration), enc.Name())

		res, err := enc.Encode(data, 2, 8)
		require.NoError(t, err)
		_, err = enc.Decode(res.Planes, 3, 2, 8, 9)
		require.True(t, errors.Is(err, utils.ErrConfiguration), enc.Name())
	}
}

func TestGrouped_ExactValues(t *testing.T) {
	data := []float64{3, -1.5, 0.25, 0}
	exp := Exponent(3) // 2
	res, err := NewGrouped().Encode(data, exp, 4)
	require.NoError(t, err)

	got, err := NewGrouped().Decode(res.Planes, 4, exp, 4, 1)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 0, 0, 0}, got)

	got, err = NewGrouped().Decode(res.Planes, 4, exp, 4, 3)
	require.NoError(t, err)
	require.Equal(t, []float64{3, -1.5, 0, 0}, got)
	require.Equal(t, 0.25*0.25, res.SquaredErrors[3])
	require.Zero(t, res.SquaredErrors[4])
}

func TestNegaBinaryConversion(t *testing.T) {
	for _, x := range []int64{0, 1, -1, 2, -2, 3, 6, -10, 12345, -54321} {
		require.Equal(t, x, fromNegaBinary(toNegaBinary(x)))
	}
	require.Equal(t, uint64(0b11), toNegaBinary(-1))
	require.Equal(t, uint64(0b110), toNegaBinary(2))
}

func BenchmarkGroupedEncode(b *testing.B) {
	data := sampleLevel(1<<16, 1)
	exp := Exponent(LevelMax(data))
	enc := NewGrouped()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = enc.Encode(data, exp, 32)
	}
}
