package schedule

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/mdr/internal/errest"
	"github.com/scigolib/mdr/internal/utils"
)

func fetchPairs(p Plan) [][2]int {
	out := make([][2]int, len(p.Fetches))
	for i, f := range p.Fetches {
		out[i] = [2]int{f.Level, f.Plane}
	}
	return out
}

func TestSchedule_SingleLevel(t *testing.T) {
	sizes := [][]uint32{{10, 10, 10, 10}}
	errs := [][]float64{{100, 50, 25, 12, 6}}
	progress := NewProgress(1)

	plan, err := Schedule(sizes, errs, 40, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 0}, {0, 1}}, fetchPairs(plan))
	require.True(t, plan.Fetches[0].Mandatory)
	require.False(t, plan.Fetches[1].Mandatory)
	require.Equal(t, 25.0, plan.Error)
	require.True(t, plan.ToleranceMet)
	require.Equal(t, []int{2}, progress.Snapshot())
}

func TestSchedule_SuccessiveTiersAreAdditive(t *testing.T) {
	sizes := [][]uint32{{10, 10, 10, 10}}
	errs := [][]float64{{100, 50, 25, 12, 6}}
	est := errest.NewSquaredErrorEstimator()
	progress := NewProgress(1)

	first, err := Schedule(sizes, errs, 40, est, progress)
	require.NoError(t, err)
	after := progress.Level(0)

	second, err := Schedule(sizes, errs, 10, est, progress)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 2}, {0, 3}}, fetchPairs(second))
	for _, f := range second.Fetches {
		require.GreaterOrEqual(t, f.Plane, after)
	}
	require.Equal(t, 6.0, second.Error)
	require.Less(t, second.Error, 10.0)
	require.Len(t, first.Fetches, 2)
}

func TestSchedule_ExhaustedLevelIsSkipped(t *testing.T) {
	sizes := [][]uint32{{10, 10}, {5, 5, 5}}
	errs := [][]float64{{40, 20, 0}, {30, 10, 5, 1}}
	progress, err := RestoreProgress([]int{2, 0})
	require.NoError(t, err)

	plan, err := Schedule(sizes, errs, 2, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	for _, f := range plan.Fetches {
		require.Equal(t, 1, f.Level)
	}
	require.Equal(t, [][2]int{{1, 0}, {1, 1}, {1, 2}}, fetchPairs(plan))
	require.Equal(t, []int{2, 3}, progress.Snapshot())
	require.Equal(t, 1.0, plan.Error)
}

func TestSchedule_GreedyPrefersGainPerByte(t *testing.T) {
	// Level 1 plane 1 removes 20 for 10 bytes; level 0 plane 1 removes 30
	// for 100 bytes.
	sizes := [][]uint32{{1, 100}, {1, 10}}
	errs := [][]float64{{100, 40, 10}, {100, 30, 10}}
	progress := NewProgress(2)

	plan, err := Schedule(sizes, errs, 60, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 0}, {1, 0}, {1, 1}}, fetchPairs(plan))
	require.Equal(t, 50.0, plan.Error)
}

func TestSchedule_TieGoesToLowerLevel(t *testing.T) {
	sizes := [][]uint32{{1, 10}, {1, 10}}
	errs := [][]float64{{50, 20, 0}, {50, 20, 0}}
	progress := NewProgress(2)

	plan, err := Schedule(sizes, errs, 30, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 0}, {1, 0}, {0, 1}}, fetchPairs(plan))
}

func TestSchedule_ZeroSizePlaneFirst(t *testing.T) {
	sizes := [][]uint32{{1, 10, 10}, {1, 0}}
	errs := [][]float64{{50, 30, 10, 5}, {50, 45, 44}}
	progress := NewProgress(2)

	// Error after every plane is 5 + 44, just below the tolerance.
	plan, err := Schedule(sizes, errs, 50, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 2}}, fetchPairs(plan))
	require.Equal(t, 49.0, plan.Error)
	require.True(t, plan.ToleranceMet)

	plan, err = Schedule(sizes, errs, 40, errest.NewSquaredErrorEstimator(), NewProgress(2))
	require.NoError(t, err)
	require.Equal(t, 49.0, plan.Error)
	require.False(t, plan.ToleranceMet)
}

func TestSchedule_PrefixCutoff(t *testing.T) {
	// Level 0 alone can reach the tolerance, so level 1 is never touched.
	sizes := [][]uint32{{10, 10}, {10, 10}}
	errs := [][]float64{{100, 10, 0}, {1, 0.5, 0}}
	progress := NewProgress(2)

	plan, err := Schedule(sizes, errs, 5, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 0}, {0, 1}}, fetchPairs(plan))
	require.Equal(t, []int{2, 0}, progress.Snapshot())
	require.Equal(t, 1.0, plan.Error)
	require.True(t, plan.ToleranceMet)
}

func TestSchedule_UnreachableTolerance(t *testing.T) {
	sizes := [][]uint32{{10, 10}}
	errs := [][]float64{{100, 10, 3}}
	progress := NewProgress(1)

	plan, err := Schedule(sizes, errs, 1, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	require.False(t, plan.ToleranceMet)
	require.Equal(t, 3.0, plan.Error)
	require.Len(t, plan.Fetches, 2)

	again, err := Schedule(sizes, errs, 1, errest.NewSquaredErrorEstimator(), progress)
	require.NoError(t, err)
	require.Empty(t, again.Fetches)
	require.False(t, again.ToleranceMet)
}

func TestSchedule_MaxErrorEstimator(t *testing.T) {
	est := errest.NewMaxErrorEstimatorOB(2)
	collector := errest.MaxErrorCollector{}
	errs := [][]float64{
		collector.CollectLevelError(nil, 9, 8, 3.5),
		collector.CollectLevelError(nil, 16, 8, 0.75),
	}
	sizes := [][]uint32{{8, 4, 4, 4, 4, 4, 4, 4}, {8, 4, 4, 4, 4, 4, 4, 4}}
	progress := NewProgress(2)

	plan, err := Schedule(sizes, errs, 0.5, est, progress)
	require.NoError(t, err)
	require.True(t, plan.ToleranceMet)

	var total float64
	for i, p := range progress.Snapshot() {
		total += est.EstimateError(errs[i][p], i)
	}
	require.InDelta(t, total, plan.Error, 1e-12)
	require.Less(t, plan.Error, 0.5)
}

func TestSchedule_Validation(t *testing.T) {
	est := errest.NewSquaredErrorEstimator()
	sizes := [][]uint32{{1, 1}}
	good := [][]float64{{3, 2, 1}}

	tests := []struct {
		name     string
		sizes    [][]uint32
		errs     [][]float64
		tol      float64
		progress *Progress
		kind     error
	}{
		{"level count mismatch", sizes, good, 1, NewProgress(2), utils.ErrConfiguration},
		{"short error sequence", sizes, [][]float64{{3, 2}}, 1, NewProgress(1), utils.ErrConfiguration},
		{"negative tolerance", sizes, good, -1, NewProgress(1), utils.ErrConfiguration},
		{"nan tolerance", sizes, good, math.NaN(), NewProgress(1), utils.ErrConfiguration},
		{"nil progress", sizes, good, 1, nil, utils.ErrConfiguration},
		{"increasing errors", sizes, [][]float64{{3, 1, 2}}, 1, NewProgress(1), utils.ErrEncodingInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Schedule(tt.sizes, tt.errs, tt.tol, est, tt.progress)
			require.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}

	p, err := RestoreProgress([]int{3})
	require.NoError(t, err)
	_, err = Schedule(sizes, good, 1, est, p)
	require.True(t, errors.Is(err, utils.ErrConfiguration))

	_, err = RestoreProgress([]int{-1})
	require.Error(t, err)
}

// randomModel draws integer-valued errors so that sums are exact.
func randomModel(rng *rand.Rand) ([][]uint32, [][]float64) {
	levels := 1 + rng.Intn(4)
	sizes := make([][]uint32, levels)
	errs := make([][]float64, levels)
	for i := range sizes {
		planes := 1 + rng.Intn(8)
		sizes[i] = make([]uint32, planes)
		errs[i] = make([]float64, planes+1)
		e := float64(100 + rng.Intn(1000))
		errs[i][0] = e
		for j := 0; j < planes; j++ {
			if rng.Intn(6) > 0 {
				sizes[i][j] = uint32(1 + rng.Intn(64))
			}
			e -= float64(rng.Intn(int(e) + 1))
			errs[i][j+1] = e
		}
	}
	return sizes, errs
}

func TestSchedule_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	est := errest.NewSquaredErrorEstimator()

	for trial := 0; trial < 300; trial++ {
		sizes, errs := randomModel(rng)
		progress := NewProgress(len(sizes))
		fetched := make(map[[2]int]bool)
		perLevel := make([][]int, len(sizes))

		tol := float64(2000 + rng.Intn(2000))
		for tier := 0; tier < 4; tier++ {
			before := progress.Snapshot()
			plan, err := Schedule(sizes, errs, tol, est, progress)
			require.NoError(t, err)
			after := progress.Snapshot()

			for i := range after {
				require.GreaterOrEqual(t, after[i], before[i])
				require.LessOrEqual(t, after[i], len(sizes[i]))
			}

			var exact float64
			for i, p := range after {
				exact += errs[i][p]
			}
			require.Equal(t, exact, plan.Error)
			require.Equal(t, plan.Error < tol, plan.ToleranceMet)

			for _, f := range plan.Fetches {
				key := [2]int{f.Level, f.Plane}
				require.False(t, fetched[key], "trial %d: %v fetched twice", trial, key)
				fetched[key] = true
				perLevel[f.Level] = append(perLevel[f.Level], f.Plane)
			}

			if n := len(plan.Fetches); plan.ToleranceMet && n > 0 && !plan.Fetches[n-1].Mandatory {
				last := plan.Fetches[n-1]
				withoutLast := exact - errs[last.Level][last.Plane+1] + errs[last.Level][last.Plane]
				require.GreaterOrEqual(t, withoutLast, tol)
			}

			tol /= float64(2 + rng.Intn(4))
		}

		for i, planes := range perLevel {
			for j, p := range planes {
				require.Equal(t, j, p)
			}
			require.Len(t, planes, progress.Level(i))
		}
	}
}

func BenchmarkSchedule(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	const levels, planes = 8, 32
	sizes := make([][]uint32, levels)
	errs := make([][]float64, levels)
	for i := range sizes {
		sizes[i] = make([]uint32, planes)
		errs[i] = make([]float64, planes+1)
		errs[i][0] = math.Ldexp(1, 10-i)
		for j := 0; j < planes; j++ {
			sizes[i][j] = uint32(64 + rng.Intn(4096))
			errs[i][j+1] = errs[i][j] / 2
		}
	}
	est := errest.NewMaxErrorEstimatorOB(3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Schedule(sizes, errs, 1e-6, est, NewProgress(levels))
	}
}
