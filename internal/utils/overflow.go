package utils

import (
	"fmt"
	"math"
)

// MaxFieldElements limits a single field to 2^40 samples.
const MaxFieldElements = 1 << 40

// CheckMultiplyOverflow checks if multiplying two uint64 values would overflow.
// Returns an error if overflow would occur.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil // No overflow when either is zero
	}

	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}

	return nil
}

// SafeMultiply multiplies two uint64 values and returns the result if no overflow occurs.
// Returns 0 and an error if overflow would occur.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// ElementCount returns the number of samples described by shape.
// Zero extents and totals above MaxFieldElements are rejected.
func ElementCount(shape []uint32) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("no dimensions provided")
	}

	total := uint64(1)
	for i, dim := range shape {
		if dim == 0 {
			return 0, fmt.Errorf("zero extent at dimension %d", i)
		}
		var err error
		total, err = SafeMultiply(total, uint64(dim))
		if err != nil {
			return 0, fmt.Errorf("element count overflow at dimension %d: %w", i, err)
		}
	}

	if total > MaxFieldElements {
		return 0, fmt.Errorf("element count %d exceeds maximum %d", total, uint64(MaxFieldElements))
	}

	return int(total), nil
}
