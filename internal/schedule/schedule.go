// Package schedule computes retrieval orders: for a tolerance, the ordered
// set of (level, plane) increments that brings the estimated global error
// below the tolerance for the fewest bytes.
package schedule

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/scigolib/mdr/internal/errest"
	"github.com/scigolib/mdr/internal/utils"
)

// Fetch selects the next plane of a level.
type Fetch struct {
	Level     int
	Plane     int
	Mandatory bool // plane 0 of a level, selected regardless of gain
}

// Plan is the result of one scheduling call.
type Plan struct {
	Fetches []Fetch

	// Error is the estimated global error once every plane selected so far,
	// including by earlier calls, is retrieved.
	Error float64

	// ToleranceMet is false when every plane of every considered level was
	// selected and Error is still at or above the tolerance.
	ToleranceMet bool
}

// Schedule extends progress with the planes needed to bring the estimated
// error below tolerance, in retrieval order.
//
// sizes[i][j] is the byte size of plane j of level i and errors[i][k] the
// level error after k planes, len(errors[i]) == len(sizes[i])+1. Each call
// selects only planes that no earlier call selected, so successive calls with
// the same progress produce additive plans.
//
// The greedy order pops the level with the largest estimated gain per byte.
// Equal gains go to the lower level index; zero-byte planes have infinite
// priority. Levels are considered in index order and, once the remaining
// levels could not lower the error below the tolerance-reaching minimum,
// later levels are never touched.
func Schedule(sizes [][]uint32, errors [][]float64, tolerance float64, est errest.Estimator, progress *Progress) (Plan, error) {
	if err := validate(sizes, errors, tolerance, progress); err != nil {
		return Plan{}, err
	}

	levels := len(sizes)
	term := func(i, k int) float64 {
		return est.EstimateError(errors[i][k], i)
	}

	var plan Plan
	accumulated := 0.0
	for i := 0; i < levels; i++ {
		accumulated += term(i, progress.Level(i))
	}
	minError := accumulated

	q := &gainQueue{}
	unitGain := func(i int) float64 {
		k := progress.Level(i)
		size := sizes[i][k]
		if size == 0 {
			return math.Inf(1)
		}
		return est.EstimateErrorGain(accumulated, errors[i][k], errors[i][k+1], i) / float64(size)
	}
	take := func(i int, mandatory bool) {
		k := progress.advance(i)
		accumulated += term(i, k+1) - term(i, k)
		plan.Fetches = append(plan.Fetches, Fetch{Level: i, Plane: k, Mandatory: mandatory})
	}

	for i := 0; i < levels; i++ {
		numPlanes := len(sizes[i])
		minError += term(i, numPlanes) - term(i, progress.Level(i))

		if progress.Level(i) == 0 && numPlanes > 0 {
			take(i, true)
		}
		if progress.Level(i) < numPlanes {
			heap.Push(q, candidate{gain: unitGain(i), level: i})
		}
		if minError < tolerance {
			break
		}
	}

	for accumulated >= tolerance && q.Len() > 0 {
		c := heap.Pop(q).(candidate)
		take(c.level, false)
		if progress.Level(c.level) < len(sizes[c.level]) {
			heap.Push(q, candidate{gain: unitGain(c.level), level: c.level})
		}
	}

	plan.Error = accumulated
	plan.ToleranceMet = accumulated < tolerance
	return plan, nil
}

func validate(sizes [][]uint32, errors [][]float64, tolerance float64, progress *Progress) error {
	if progress == nil {
		return utils.ConfigErrorf("progress", "missing")
	}
	if math.IsNaN(tolerance) || tolerance < 0 {
		return utils.ConfigErrorf("tolerance", "%g must be a non-negative number", tolerance)
	}
	if len(sizes) != len(errors) || len(sizes) != progress.Levels() {
		return utils.ConfigErrorf("levels", "%d sizes, %d error sequences, %d progress entries",
			len(sizes), len(errors), progress.Levels())
	}
	for i := range sizes {
		if len(errors[i]) != len(sizes[i])+1 {
			return utils.ConfigErrorf("level errors", "level %d has %d errors for %d planes",
				i, len(errors[i]), len(sizes[i]))
		}
		if progress.Level(i) > len(sizes[i]) {
			return utils.ConfigErrorf("progress", "level %d cursor %d beyond %d planes",
				i, progress.Level(i), len(sizes[i]))
		}
		if err := errest.ValidateMonotone(errors[i]); err != nil {
			return utils.WrapError(fmt.Sprintf("level %d", i), err)
		}
	}
	return nil
}

type candidate struct {
	gain  float64
	level int
}

// gainQueue is a max-heap on gain, lower level first on ties.
type gainQueue []candidate

func (q gainQueue) Len() int { return len(q) }

func (q gainQueue) Less(i, j int) bool {
	if q[i].gain != q[j].gain {
		return q[i].gain > q[j].gain
	}
	return q[i].level < q[j].level
}

func (q gainQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *gainQueue) Push(x any) { *q = append(*q, x.(candidate)) }

func (q *gainQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}
