package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetBuffer(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"small buffer within pool capacity", 1024},
		{"exact pool default size", 4096},
		{"larger than pool capacity", 8192},
		{"zero size", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := GetBuffer(tt.size)
			require.NotNil(t, buf)
			require.Len(t, buf, tt.size)
			require.GreaterOrEqual(t, cap(buf), tt.size)
			ReleaseBuffer(buf)
		})
	}
}

func TestGetCoefficientsZeroed(t *testing.T) {
	buf := GetCoefficients(64)
	for i := range buf {
		buf[i] = float64(i) + 0.5
	}
	ReleaseCoefficients(buf)

	again := GetCoefficients(32)
	require.Len(t, again, 32)
	for _, v := range again {
		require.Zero(t, v)
	}
	ReleaseCoefficients(again)
}

func TestCoefficientPoolConcurrency(t *testing.T) {
	const goroutines = 8

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				n := 16 + (i*g)%512
				buf := GetCoefficients(n)
				require.Len(t, buf, n)
				buf[n-1] = 1
				ReleaseCoefficients(buf)
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkGetCoefficients(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := GetCoefficients(4096)
		ReleaseCoefficients(buf)
	}
}
