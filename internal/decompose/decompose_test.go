package decompose

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/mdr/internal/errest"
	"github.com/scigolib/mdr/internal/grid"
	"github.com/scigolib/mdr/internal/utils"
)

func randomField(shape []uint32, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, grid.RegionSize(shape))
	for i := range data {
		data[i] = rng.NormFloat64() * 10
	}
	return data
}

func TestNew(t *testing.T) {
	d, err := New("")
	require.NoError(t, err)
	require.Equal(t, Orthogonal, d.Name())

	d, err = New(Hierarchical)
	require.NoError(t, err)
	require.Equal(t, Hierarchical, d.Name())

	_, err = New("wavelet97")
	require.True(t, errors.Is(err, utils.ErrConfiguration))
}

func TestRoundTrip(t *testing.T) {
	shapes := []struct {
		shape  []uint32
		target int
	}{
		{[]uint32{17}, 3},
		{[]uint32{16}, 3},
		{[]uint32{9, 12}, 2},
		{[]uint32{10, 7, 9}, 1},
		{[]uint32{33, 5}, 1},
	}

	for _, name := range []string{Hierarchical, Orthogonal} {
		d, err := New(name)
		require.NoError(t, err)

		for _, tc := range shapes {
			original := randomField(tc.shape, 7)
			data := append([]float64(nil), original...)

			require.NoError(t, d.Decompose(data, tc.shape, tc.target))
			require.NotEqual(t, original, data)
			require.NoError(t, d.Recompose(data, tc.shape, tc.target))

			for i := range data {
				require.InDelta(t, original[i], data[i], 1e-9*(1+math.Abs(original[i])),
					"%s shape %v index %d", name, tc.shape, i)
			}
		}
	}
}

func TestHierarchical_QuadraticLine(t *testing.T) {
	data := []float64{0, 1, 4, 9, 16}
	require.NoError(t, NewHierarchical().Decompose(data, []uint32{5}, 1))
	require.Equal(t, []float64{0, 4, 16, -1, -1}, data)
}

func TestHierarchical_LinearFieldHasNoDetail(t *testing.T) {
	shape := []uint32{9, 9}
	data := make([]float64, 81)
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			data[i*9+j] = 2*float64(i) - 3*float64(j) + 1
		}
	}

	g, err := grid.New(shape, 2)
	require.NoError(t, err)
	require.NoError(t, NewHierarchical().Decompose(data, shape, 2))

	for level := 1; level < g.NumLevels(); level++ {
		prev := g.PrevShape(level)
		grid.ForEach(shape, g.LevelShape(level), func(coord []int, off int) {
			if grid.InRegion(coord, prev) {
				return
			}
			require.InDelta(t, 0, data[off], 1e-12)
		})
	}
}

func TestOrthogonal_HatProjectsToMean(t *testing.T) {
	line := []float64{0, 1, 0}
	scratch := make([]float64, len(line))
	orthogonalLine{}.forward(line, scratch)
	require.InDeltaSlice(t, []float64{0.5, 0.5, 1}, line, 1e-12)

	orthogonalLine{}.inverse(line, scratch)
	require.InDeltaSlice(t, []float64{0, 1, 0}, line, 1e-12)
}

// A detail error e on every level-1 coefficient of a 5x5 grid reaches 3e at
// nodes that are fine along both axes, matching the hierarchical estimator.
func TestHierarchical_DetailErrorGrowsWithDimensions(t *testing.T) {
	const e = 0.25
	shape := []uint32{5, 5}
	g, err := grid.New(shape, 1)
	require.NoError(t, err)

	data := make([]float64, 25)
	grid.ForEach(shape, shape, func(coord []int, off int) {
		if !grid.InRegion(coord, g.LevelShape(0)) {
			data[off] = e
		}
	})
	require.NoError(t, NewHierarchical().Recompose(data, shape, 1))

	require.Equal(t, 3*e, data[1*5+1])
	require.Equal(t, 3*e, data[3*5+3])
	require.Equal(t, e, data[0*5+1])
	require.Equal(t, 0.0, data[2*5+2])

	var worst float64
	for _, v := range data {
		worst = math.Max(worst, math.Abs(v))
	}
	hb, err := errest.NewEstimator(errest.MaxErrorHB, len(shape))
	require.NoError(t, err)
	require.Equal(t, worst, hb.EstimateError(e, 1))
}

func TestOrthogonal_ConstantFieldUnchangedOnCoarseGrid(t *testing.T) {
	shape := []uint32{8, 6}
	data := make([]float64, 48)
	for i := range data {
		data[i] = 3.25
	}
	require.NoError(t, NewOrthogonal().Decompose(data, shape, 1))

	g, err := grid.New(shape, 1)
	require.NoError(t, err)
	grid.ForEach(shape, shape, func(coord []int, off int) {
		if grid.InRegion(coord, g.LevelShape(0)) {
			require.InDelta(t, 3.25, data[off], 1e-12)
		} else {
			require.InDelta(t, 0, data[off], 1e-12)
		}
	})
}

func TestDecompose_Errors(t *testing.T) {
	d := NewOrthogonal()

	err := d.Decompose(make([]float64, 8), []uint32{8}, 3)
	require.True(t, errors.Is(err, utils.ErrConfiguration))

	err = d.Decompose(make([]float64, 7), []uint32{8}, 1)
	require.True(t, errors.Is(err, utils.ErrConfiguration))

	var cerr *utils.ConfigError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "data", cerr.Param)
}

func TestSolveTridiagonal(t *testing.T) {
	diag := []float64{4, 4, 4}
	upper := []float64{1, 1, 0}
	rhs := []float64{5, 6, 5}
	x := make([]float64, 3)
	solveTridiagonal(diag, upper, rhs, x)
	require.InDeltaSlice(t, []float64{1, 1, 1}, x, 1e-12)
}

func TestSplitMerge(t *testing.T) {
	for _, n := range []int{3, 4, 7, 8} {
		line := make([]float64, n)
		for i := range line {
			line[i] = float64(i)
		}
		scratch := make([]float64, n)
		split(line, scratch)
		for c := 0; c < coarseCount(n); c++ {
			require.Equal(t, float64(coarseIndex(c, n)), line[c])
		}
		merge(line, scratch)
		for i := range line {
			require.Equal(t, float64(i), line[i])
		}
	}
}

func BenchmarkOrthogonalDecompose(b *testing.B) {
	shape := []uint32{65, 65, 65}
	data := randomField(shape, 1)
	d := NewOrthogonal()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = d.Decompose(data, shape, 4)
	}
}
