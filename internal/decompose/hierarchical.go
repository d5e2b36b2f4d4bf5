package decompose

// hierarchicalLine is the interpolating lifting step: every fine node stores
// its deviation from the linear interpolant of its two coarse neighbours.
type hierarchicalLine struct{}

// NewHierarchical returns the hierarchical-basis decomposer.
func NewHierarchical() Decomposer {
	return &multilevel{name: Hierarchical, line: hierarchicalLine{}}
}

func (hierarchicalLine) forward(line, scratch []float64) {
	predict(line, -1)
	split(line, scratch)
}

func (hierarchicalLine) inverse(line, scratch []float64) {
	merge(line, scratch)
	predict(line, 1)
}

// predict adds sign times the interpolant to every fine node of a line in
// natural order.
func predict(line []float64, sign float64) {
	n := len(line)
	for k := 1; k < n; k++ {
		if isCoarse(k, n) {
			continue
		}
		line[k] += sign * 0.5 * (line[k-1] + line[k+1])
	}
}
