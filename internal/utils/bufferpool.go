// Package utils provides utility functions shared by the refactoring pipeline.
package utils

import "sync"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 4096)
	},
}

var coeffPool = sync.Pool{
	New: func() interface{} {
		return make([]float64, 0, 1024)
	},
}

// GetBuffer returns a byte slice from the pool.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2) // Increase capacity.
	}
	return buf[:size]
}

// ReleaseBuffer returns a buffer to the pool.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}

// GetCoefficients returns a zeroed coefficient buffer of the given length.
// Level buffers are owned by one encode pass and released when it returns.
func GetCoefficients(n int) []float64 {
	buf := coeffPool.Get().([]float64)
	if cap(buf) < n {
		return make([]float64, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// ReleaseCoefficients returns a coefficient buffer to the pool.
func ReleaseCoefficients(buf []float64) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	coeffPool.Put(buf[:0])
}
