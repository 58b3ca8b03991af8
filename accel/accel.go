// Package accel adapts the teacher's OCCA kernel builder (builder/) and
// runner device-selection idiom (utils/device_helpers.go) into an
// optional accelerated whole-streak kernel backend, per spec.md §6's
// "whole-streak update variant... for vectorization; when present, the
// stepper prefers it." A cell type that wants GPU/vectorized dispatch
// embeds a *StreakKernel and implements cell.StreakUpdater[T] by
// delegating UpdateStreak to Run; the stepper itself stays unaware of
// OCCA, exactly as spec.md §6 treats the whole-streak path as a
// user-supplied collaborator.
package accel

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/notargets/hiparstencil/builder"
)

// NewDevice builds an OCCA device, preferring parallel backends over the
// Serial fallback, grounded on utils.CreateTestDevice's backend probe
// order.
func NewDevice() (*gocca.OCCADevice, error) {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}
	var lastErr error
	for _, props := range backends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			return device, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("accel: no OCCA backend available: %w", lastErr)
}

// StreakKernel compiles a single OCCA kernel once and invokes it over an
// entire streak's cell values in one call, instead of the Stepper's
// cell-by-cell fallback loop. Grounded on builder.Builder's
// single-partition array allocation (K here is always a length-one
// slice holding the current streak's cell count) and its
// AllocateArrays/BuildKernel/RunKernel sequence.
//
// source must declare an OCCA kernel named kernelName with signature
// (const long *K, double *in_global, const long *in_offsets,
// double *out_global, const long *out_offsets), writing out[i] from
// in[i] (and its @inner-loop neighbors, for stencil kernels that read
// adjacent streak entries) for i in [0, K[0]).
type StreakKernel struct {
	device     *gocca.OCCADevice
	source     string
	kernelName string
	kb         *builder.Builder
	capacity   int
}

// NewStreakKernel compiles source against device, sized for streaks up
// to capacity cells long. It grows (recompiling against a larger
// partition) the first time a longer streak is submitted to Run.
func NewStreakKernel(device *gocca.OCCADevice, source, kernelName string, capacity int) (*StreakKernel, error) {
	if capacity <= 0 {
		capacity = 1
	}
	sk := &StreakKernel{device: device, source: source, kernelName: kernelName}
	if err := sk.grow(capacity); err != nil {
		return nil, err
	}
	return sk, nil
}

func (sk *StreakKernel) grow(capacity int) error {
	kb := builder.NewDGKernel(sk.device, builder.Config{K: []int{capacity}, FloatType: builder.Float64})
	if err := kb.AllocateArrays([]builder.ArraySpec{
		{Name: "in", Size: int64(capacity) * 8, Alignment: builder.CacheLineAlign, DataType: builder.Float64},
		{Name: "out", Size: int64(capacity) * 8, Alignment: builder.CacheLineAlign, DataType: builder.Float64},
	}); err != nil {
		return fmt.Errorf("accel: allocate streak buffers: %w", err)
	}
	if _, err := kb.BuildKernel(sk.source, sk.kernelName); err != nil {
		return fmt.Errorf("accel: build kernel %s: %w", sk.kernelName, err)
	}
	if sk.kb != nil {
		sk.kb.Free()
	}
	sk.kb = kb
	sk.capacity = capacity
	return nil
}

// Run copies in to device, invokes the compiled kernel (whose loop bound
// is the allocated capacity, grown to at least len(in)), and copies the
// first len(out) results into out. in and out must be the same length: a
// mismatch is returned as an error, and out is never resized.
func (sk *StreakKernel) Run(in []float64, out []float64) error {
	if len(in) != len(out) {
		return fmt.Errorf("accel: in/out length mismatch: %d vs %d", len(in), len(out))
	}
	if len(in) == 0 {
		return nil
	}
	if len(in) > sk.capacity {
		if err := sk.grow(len(in)); err != nil {
			return err
		}
	}

	inMem := sk.kb.GetMemory("in")
	inMem.CopyFrom(unsafe.Pointer(&in[0]), int64(len(in))*8)

	if err := sk.kb.RunKernel(sk.kernelName, "in", "out"); err != nil {
		return fmt.Errorf("accel: run kernel %s: %w", sk.kernelName, err)
	}

	outMem := sk.kb.GetMemory("out")
	outMem.CopyTo(unsafe.Pointer(&out[0]), int64(len(out))*8)
	return nil
}

// Free releases the kernel's device resources.
func (sk *StreakKernel) Free() {
	if sk.kb != nil {
		sk.kb.Free()
	}
}
