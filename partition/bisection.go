package partition

import (
	"fmt"

	"github.com/notargets/hiparstencil/region"
)

// Bisection recursively splits simBox along its longest axis, dividing
// the weight sum as evenly as possible into two halves at each level,
// until one leaf box remains per node.
type Bisection struct {
	weights  []int
	simBox   region.CoordBox
	leafBoxs []region.CoordBox
}

// NewBisection builds a recursive-bisection partition over simBox for
// len(weights) nodes.
func NewBisection(simBox region.CoordBox, weights []int) (*Bisection, error) {
	if simBox.Empty() {
		return nil, fmt.Errorf("partition: bisection over an empty simBox")
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("partition: bisection requires at least one node weight")
	}
	total := 0
	for _, w := range weights {
		total += w
	}
	if total != simBox.Size() {
		return nil, fmt.Errorf("partition: bisection weights sum to %d, simBox has %d cells", total, simBox.Size())
	}

	b := &Bisection{weights: weights, simBox: simBox, leafBoxs: make([]region.CoordBox, len(weights))}
	b.split(simBox, 0, len(weights))
	return b, nil
}

func (b *Bisection) split(box region.CoordBox, lo, hi int) {
	if hi-lo == 1 {
		b.leafBoxs[lo] = box
		return
	}

	total := 0
	for i := lo; i < hi; i++ {
		total += b.weights[i]
	}
	target := total / 2

	splitNode := lo + 1
	bestDiff := -1
	cum := b.weights[lo]
	for k := lo + 1; k < hi; k++ {
		diff := cum - target
		if diff < 0 {
			diff = -diff
		}
		if bestDiff == -1 || diff < bestDiff {
			bestDiff = diff
			splitNode = k
		}
		cum += b.weights[k]
	}

	leftWeight := 0
	for i := lo; i < splitNode; i++ {
		leftWeight += b.weights[i]
	}

	axis := longestAxis(box)
	extent := box.Dimensions[axis]
	splitOffset := (leftWeight * extent) / total
	if splitOffset < 1 {
		splitOffset = 1
	}
	if splitOffset > extent-1 {
		splitOffset = extent - 1
	}

	left := box
	left.Dimensions = box.Dimensions.Clone()
	left.Dimensions[axis] = splitOffset

	right := box
	right.Origin = box.Origin.Clone()
	right.Origin[axis] = box.Origin[axis] + splitOffset
	right.Dimensions = box.Dimensions.Clone()
	right.Dimensions[axis] = extent - splitOffset

	b.split(left, lo, splitNode)
	b.split(right, splitNode, hi)
}

// longestAxis returns the axis with the largest extent, preferring the
// lowest-numbered axis on ties.
func longestAxis(box region.CoordBox) int {
	best := 0
	for axis := 1; axis < box.Dim(); axis++ {
		if box.Dimensions[axis] > box.Dimensions[best] {
			best = axis
		}
	}
	return best
}

// GetRegion implements Partition.
func (b *Bisection) GetRegion(node int) *region.Region {
	r := region.NewRegion(b.simBox.Dim())
	if node < 0 || node >= len(b.leafBoxs) {
		return r
	}
	box := b.leafBoxs[node]
	if box.Empty() {
		return r
	}
	boxToRegion(box, r)
	return r
}

// boxToRegion inserts every row of box as one streak into r.
func boxToRegion(box region.CoordBox, r *region.Region) {
	end := box.End()
	dim := box.Dim()
	if dim == 1 {
		r.Insert(region.NewStreak(box.Origin, end.X()))
		return
	}
	// Iterate every combination of the non-x axes.
	idx := box.Origin.Clone()
	for i := 1; i < dim; i++ {
		idx[i] = box.Origin[i]
	}
	for {
		origin := idx.Clone()
		origin[0] = box.Origin[0]
		r.Insert(region.NewStreak(origin, end.X()))

		axis := 1
		for axis < dim {
			idx[axis]++
			if idx[axis] < end[axis] {
				break
			}
			idx[axis] = box.Origin[axis]
			axis++
		}
		if axis == dim {
			break
		}
	}
}

// GetWeights implements Partition.
func (b *Bisection) GetWeights() []int { return b.weights }

// GetAdjacency implements Partition. Bisection is a lattice scheme; it
// has no adjacency graph.
func (b *Bisection) GetAdjacency() region.Adjacency { return nil }
