// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package decompose

import "github.com/scigolib/mdr/internal/utils"

// orthogonalLine extends the interpolating step with an L2 projection: the
// coarse nodes absorb the mass-matrix projection of the detail function so
// that the coarse representation is the best piecewise-linear approximation
// of the line, not merely its restriction.
type orthogonalLine struct{}

// NewOrthogonal returns the L2-orthogonal decomposer.
func NewOrthogonal() Decomposer {
	return &multilevel{name: Orthogonal, line: orthogonalLine{}}
}

func (orthogonalLine) forward(line, scratch []float64) {
	predict(line, -1)
	correct(line, 1)
	split(line, scratch)
}

func (orthogonalLine) inverse(line, scratch []float64) {
	merge(line, scratch)
	correct(line, -1)
	predict(line, 1)
}

// correct adds sign times the projection correction to the coarse nodes of a
// line in natural order. The correction depends on the fine nodes only, so
// the forward and inverse passes compute the same values.
func correct(line []float64, sign float64) {
	n := len(line)
	nc := coarseCount(n)

	work := utils.GetCoefficients(n + 4*nc)
	defer utils.ReleaseCoefficients(work)
	load := work[:n]
	rhs := work[n : n+nc]
	diag := work[n+nc : n+2*nc]
	upper := work[n+2*nc : n+3*nc]
	z := work[n+3*nc:]

	// Load vector: fine mass matrix (unit spacing) applied to the detail
	// function, which is zero on coarse nodes.
	for k := 0; k < n; k++ {
		var v float64
		if k > 0 {
			v += 2*fineValue(line, k) + fineValue(line, k-1)
		}
		if k < n-1 {
			v += 2*fineValue(line, k) + fineValue(line, k+1)
		}
		load[k] = v / 6
	}

	// Restriction: transpose of linear interpolation onto the coarse grid.
	for c := 0; c < nc; c++ {
		k := coarseIndex(c, n)
		r := load[k]
		if k > 0 && !isCoarse(k-1, n) {
			r += 0.5 * load[k-1]
		}
		if k < n-1 && !isCoarse(k+1, n) {
			r += 0.5 * load[k+1]
		}
		rhs[c] = r
	}

	// Coarse mass matrix on the (possibly non-uniform) coarse spacing.
	for c := 0; c < nc; c++ {
		var left, right float64
		if c > 0 {
			left = float64(coarseIndex(c, n) - coarseIndex(c-1, n))
		}
		if c < nc-1 {
			right = float64(coarseIndex(c+1, n) - coarseIndex(c, n))
		}
		diag[c] = (left + right) / 3
		upper[c] = right / 6
	}

	solveTridiagonal(diag, upper, rhs, z)

	for c := 0; c < nc; c++ {
		line[coarseIndex(c, n)] += sign * z[c]
	}
}

// fineValue returns line[k] on fine nodes and zero on coarse nodes.
func fineValue(line []float64, k int) float64 {
	if isCoarse(k, len(line)) {
		return 0
	}
	return line[k]
}

// solveTridiagonal solves a symmetric tridiagonal system with the Thomas
// algorithm. upper[i] couples unknowns i and i+1. diag and rhs are
// overwritten.
func solveTridiagonal(diag, upper, rhs, x []float64) {
	n := len(diag)
	for i := 1; i < n; i++ {
		w := upper[i-1] / diag[i-1]
		diag[i] -= w * upper[i-1]
		rhs[i] -= w * rhs[i-1]
	}
	x[n-1] = rhs[n-1] / diag[n-1]
	for i := n - 2; i >= 0; i-- {
		x[i] = (rhs[i] - upper[i]*x[i+1]) / diag[i]
	}
}
