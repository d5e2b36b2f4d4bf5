// Package errest turns per-level error observations into a global error
// model: collectors produce one non-increasing error sequence per level, and
// estimators map level errors to comparable global units.
package errest

import (
	"math"

	"github.com/scigolib/mdr/internal/utils"
)

// Collector produces the error of a level after 0..numPlanes planes.
type Collector interface {
	// Name returns the registry name of the collector.
	Name() string

	// CollectLevelError returns numPlanes+1 non-increasing values. data may
	// be nil when only the level's max-error bound is known.
	CollectLevelError(data []float64, count, numPlanes int, levelMaxError float64) []float64
}

// Estimator maps level errors to a global error estimate.
type Estimator interface {
	// Name returns the registry name of the estimator.
	Name() string

	// EstimateError converts one level's error into global units.
	EstimateError(levelError float64, level int) float64

	// EstimateErrorGain returns the global error reduction of moving a level
	// from errorBefore to errorAfter.
	EstimateErrorGain(accumulated, errorBefore, errorAfter float64, level int) float64
}

// Strategy names.
const (
	MaxError     = "max"
	SquaredError = "squared"

	MaxErrorOB = "max-ob"
	MaxErrorHB = "max-hb"
)

// NewCollector returns the collector registered under name.
func NewCollector(name string) (Collector, error) {
	switch name {
	case MaxError, "":
		return MaxErrorCollector{}, nil
	case SquaredError:
		return SquaredErrorCollector{}, nil
	default:
		return nil, utils.ConfigErrorf("error collector", "unknown strategy %q", name)
	}
}

// NewEstimator returns the estimator registered under name for a field of
// ndims dimensions.
func NewEstimator(name string, ndims int) (Estimator, error) {
	switch name {
	case MaxErrorOB, "":
		return NewMaxErrorEstimatorOB(ndims), nil
	case MaxErrorHB:
		return NewMaxErrorEstimatorHB(ndims), nil
	case SquaredError:
		return NewSquaredErrorEstimator(), nil
	default:
		return nil, utils.ConfigErrorf("error estimator", "unknown strategy %q", name)
	}
}

// ValidateMonotone reports an encoding invariant violation when errs
// increases anywhere.
func ValidateMonotone(errs []float64) error {
	for i := 1; i < len(errs); i++ {
		if errs[i] > errs[i-1] || math.IsNaN(errs[i]) {
			return utils.InvariantErrorf("error %g at plane %d exceeds %g at plane %d", errs[i], i, errs[i-1], i-1)
		}
	}
	return nil
}

// MaxErrorCollector models the L-infinity error analytically from the level
// bound: after i planes every coefficient is known to within 2^(exp-i).
type MaxErrorCollector struct{}

// Name implements Collector.
func (MaxErrorCollector) Name() string { return MaxError }

// CollectLevelError implements Collector.
func (MaxErrorCollector) CollectLevelError(_ []float64, _, numPlanes int, levelMaxError float64) []float64 {
	errs := make([]float64, numPlanes+1)
	if levelMaxError == 0 {
		return errs
	}
	_, exp := math.Frexp(levelMaxError)
	errs[0] = levelMaxError
	for i := 1; i <= numPlanes; i++ {
		errs[i] = math.Ldexp(1, exp-i)
	}
	return errs
}

// SquaredErrorCollector measures the squared error of sign-magnitude
// truncation against the level's coefficients. Without coefficients it falls
// back to count times the squared max-error model.
type SquaredErrorCollector struct{}

// Name implements Collector.
func (SquaredErrorCollector) Name() string { return SquaredError }

// CollectLevelError implements Collector.
func (SquaredErrorCollector) CollectLevelError(data []float64, count, numPlanes int, levelMaxError float64) []float64 {
	if data == nil {
		errs := MaxErrorCollector{}.CollectLevelError(nil, count, numPlanes, levelMaxError)
		for i, e := range errs {
			errs[i] = float64(count) * e * e
		}
		return errs
	}

	errs := make([]float64, numPlanes+1)
	if levelMaxError == 0 {
		return errs
	}
	_, exp := math.Frexp(levelMaxError)
	for _, v := range data {
		a := math.Abs(v)
		fixed := math.Trunc(math.Ldexp(a, numPlanes-exp))
		for k := 0; k <= numPlanes; k++ {
			kept := math.Ldexp(math.Trunc(math.Ldexp(fixed, k-numPlanes)), exp-k)
			d := a - kept
			errs[k] += d * d
		}
	}
	return errs
}

// scaledEstimator weights the coarsest level by coarse and every finer
// level by detail.
type scaledEstimator struct {
	name   string
	coarse float64
	detail float64
}

// NewMaxErrorEstimatorOB returns the L-infinity estimator for the orthogonal
// basis: level maxima are summed and scaled by (1+sqrt(3)/2)^ndims.
func NewMaxErrorEstimatorOB(ndims int) Estimator {
	f := math.Pow(1+math.Sqrt(3)/2, float64(ndims))
	return &scaledEstimator{name: MaxErrorOB, coarse: f, detail: f}
}

// NewMaxErrorEstimatorHB returns the L-infinity estimator for the
// hierarchical basis. The coarsest level holds nodal values. Recomposing a
// finer level interpolates axis by axis, and a node that is fine along m
// axes picks up the coefficient errors of 2^m-1 nodes, so detail levels
// are weighted by 2^ndims-1.
func NewMaxErrorEstimatorHB(ndims int) Estimator {
	detail := math.Ldexp(1, max(ndims, 1)) - 1
	return &scaledEstimator{name: MaxErrorHB, coarse: 1, detail: detail}
}

// NewSquaredErrorEstimator returns the estimator for squared errors, which
// add across levels of an orthogonal decomposition without reweighting.
func NewSquaredErrorEstimator() Estimator {
	return &scaledEstimator{name: SquaredError, coarse: 1, detail: 1}
}

func (e *scaledEstimator) Name() string { return e.name }

func (e *scaledEstimator) EstimateError(levelError float64, level int) float64 {
	if level == 0 {
		return e.coarse * levelError
	}
	return e.detail * levelError
}

func (e *scaledEstimator) EstimateErrorGain(_, errorBefore, errorAfter float64, level int) float64 {
	return e.EstimateError(errorBefore, level) - e.EstimateError(errorAfter, level)
}
