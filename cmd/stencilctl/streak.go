package main

import (
	"github.com/notargets/hiparstencil/accel"
	"github.com/notargets/hiparstencil/cell"
	"github.com/notargets/hiparstencil/grid"
	"github.com/notargets/hiparstencil/region"
)

// streakHeatKernelSource computes one nano-step of 1-D heat diffusion
// for an entire streak in a single OCCA dispatch. The host side pads
// the streak with one halo cell on either end (positions 0 and K-1);
// the device only writes the interior it has both neighbors for.
const streakHeatKernelSource = `
@kernel void heatStreak(const long * K,
                        double * in_global, const long * in_offsets,
                        double * out_global, const long * out_offsets) {
  for (int elem = 0; elem < KpartMax; ++elem; @inner) {
    if (elem > 0 && elem < K[0] - 1) {
      out_global[elem] = (in_global[elem - 1] + in_global[elem] + in_global[elem + 1]) / 3.0;
    }
  }
}
`

// streakHeatCell is heatCell's accelerated twin (spec.md §6's optional
// whole-streak collaborator; SPEC_FULL.md §2.6): the same update rule,
// but UpdateStreak hands an entire streak to accel.StreakKernel in one
// device dispatch instead of looping cell by cell. kernel travels with
// the cell's own value (nil in a zero-valued cell such as the grid's edge
// cell; the simulation.accelerated config field selects this cell type),
// the same way the scalar path carries no state beyond the temperature
// itself.
type streakHeatCell struct {
	val    float64
	kernel *accel.StreakKernel
}

func (streakHeatCell) Dim() int               { return 1 }
func (streakHeatCell) WrapsAxis(int) bool     { return false }
func (streakHeatCell) StencilRadius() int     { return 1 }
func (streakHeatCell) NanoStepsPerCycle() int { return 1 }

func (c streakHeatCell) Update(acc cell.NeighborhoodAccessor[streakHeatCell], _ int) streakHeatCell {
	left := acc.At(region.NewCoord(-1)).val
	right := acc.At(region.NewCoord(1)).val
	return streakHeatCell{val: (left + c.val + right) / 3, kernel: c.kernel}
}

// UpdateStreak implements cell.StreakUpdater. It builds a halo-padded
// host buffer (one extra cell on either side of the streak), ships it
// to the device kernel, and falls back to the identical scalar average
// in place if the device run errors (e.g. no OCCA backend available).
func (c streakHeatCell) UpdateStreak(acc cell.NeighborhoodAccessor[streakHeatCell], _ int, out []streakHeatCell) {
	n := len(out)
	in := make([]float64, n+2)
	for i := range in {
		in[i] = acc.At(region.NewCoord(i - 1)).val
	}

	scalar := func(i int) float64 {
		return (in[i] + in[i+1] + in[i+2]) / 3
	}

	if c.kernel == nil {
		for i := 0; i < n; i++ {
			out[i] = streakHeatCell{val: scalar(i), kernel: c.kernel}
		}
		return
	}

	padded := make([]float64, n+2)
	if err := c.kernel.Run(in, padded); err != nil {
		for i := 0; i < n; i++ {
			out[i] = streakHeatCell{val: scalar(i), kernel: c.kernel}
		}
		return
	}
	for i := 0; i < n; i++ {
		out[i] = streakHeatCell{val: padded[i+1], kernel: c.kernel}
	}
}

// streakSpikeInitializer mirrors spikeInitializer but stamps every cell
// in the process's expanded box with kernel, so the device collaborator
// propagates forward from Update/UpdateStreak's own receiver rather than
// only existing at the one coordinate the spike was seeded at.
type streakSpikeInitializer struct {
	box      region.CoordBox
	maxSteps uint64
	spikeAt  int
	value    float64
	kernel   *accel.StreakKernel
}

func (i streakSpikeInitializer) GridBox() region.CoordBox { return i.box }
func (i streakSpikeInitializer) StartStep() uint64        { return 0 }
func (i streakSpikeInitializer) MaxSteps() uint64         { return i.maxSteps }

func (i streakSpikeInitializer) Grid(target *grid.Displaced[streakHeatCell]) {
	box := target.Box()
	x0, x1 := box.Origin.X(), box.End().X()
	for x := x0; x < x1; x++ {
		v := streakHeatCell{kernel: i.kernel}
		if x == i.spikeAt {
			v.val = i.value
		}
		target.Set(region.NewCoord(x), v)
	}
}
