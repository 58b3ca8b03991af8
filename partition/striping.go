package partition

import (
	"fmt"

	"github.com/notargets/hiparstencil/region"
)

// Striping decomposes simBox into contiguous row-major spans of weight
// w[i]: node i owns the cells whose linearized index falls in
// [offset+sum(w[0:i]), offset+sum(w[0:i+1])). A span is therefore a run
// of full rows plus a partial prefix/suffix row.
type Striping struct {
	simBox  region.CoordBox
	offset  int
	weights []int
}

// NewStriping builds a striping partition. The weights must sum, together
// with offset, to exactly simBox.Size(); this mirrors the precondition in
// spec.md §4.2 and fails fast rather than silently clipping.
func NewStriping(simBox region.CoordBox, offset int, weights []int) (*Striping, error) {
	total := offset
	for _, w := range weights {
		total += w
	}
	if total != simBox.Size() {
		return nil, fmt.Errorf("partition: striping weights+offset=%d do not cover simBox of size %d", total, simBox.Size())
	}
	return &Striping{simBox: simBox, offset: offset, weights: weights}, nil
}

// GetRegion implements Partition.
func (s *Striping) GetRegion(node int) *region.Region {
	r := region.NewRegion(s.simBox.Dim())
	if node < 0 || node >= len(s.weights) {
		return r
	}
	lo := s.offset
	for i := 0; i < node; i++ {
		lo += s.weights[i]
	}
	hi := lo + s.weights[node]
	if lo >= hi {
		return r
	}

	// Translate the linear range [lo, hi) back into streaks. Because the
	// linear index is row-major with x innermost, within a single row
	// y (and higher axes fixed) the range is contiguous in x.
	rowSize := s.simBox.Dimensions[0]
	for idx := lo; idx < hi; {
		rowStart := (idx / rowSize) * rowSize
		rowEnd := rowStart + rowSize
		end := hi
		if end > rowEnd {
			end = rowEnd
		}
		originCoord := s.simBox.CoordAtLinearIndex(idx)
		endX := originCoord.X() + (end - idx)
		r.Insert(region.NewStreak(originCoord, endX))
		idx = end
	}
	return r
}

// GetWeights implements Partition.
func (s *Striping) GetWeights() []int { return s.weights }

// GetAdjacency implements Partition. Striping is a lattice scheme; it has
// no adjacency graph.
func (s *Striping) GetAdjacency() region.Adjacency { return nil }
