package accel_test

import (
	"testing"

	"github.com/notargets/hiparstencil/accel"
	"github.com/stretchr/testify/require"
)

const doubleKernelSource = `
@kernel void doubleValues(const long * K,
                          double * in_global, const long * in_offsets,
                          double * out_global, const long * out_offsets) {
  for (int elem = 0; elem < KpartMax; ++elem; @inner) {
    if (elem < K[0]) {
      out_global[elem] = 2.0 * in_global[elem];
    }
  }
}
`

func TestStreakKernelDoublesValues(t *testing.T) {
	device, err := accel.NewDevice()
	require.NoError(t, err)

	sk, err := accel.NewStreakKernel(device, doubleKernelSource, "doubleValues", 4)
	require.NoError(t, err)
	defer sk.Free()

	in := []float64{1, 2, 3, 4}
	out := make([]float64, 4)
	require.NoError(t, sk.Run(in, out))
	require.Equal(t, []float64{2, 4, 6, 8}, out)
}

func TestStreakKernelGrowsForLongerStreaks(t *testing.T) {
	device, err := accel.NewDevice()
	require.NoError(t, err)

	sk, err := accel.NewStreakKernel(device, doubleKernelSource, "doubleValues", 2)
	require.NoError(t, err)
	defer sk.Free()

	in := []float64{1, 2, 3, 4, 5}
	out := make([]float64, 5)
	require.NoError(t, sk.Run(in, out))
	require.Equal(t, []float64{2, 4, 6, 8, 10}, out)
}
