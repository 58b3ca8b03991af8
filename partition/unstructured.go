package partition

import (
	"fmt"

	"github.com/notargets/hiparstencil/region"
)

// GraphAdjacency is a region.Adjacency backed by an explicit neighbor
// map, used for the unstructured (non-lattice) partitioning scheme.
type GraphAdjacency struct {
	neighbors map[string][]region.Coord
}

// NewGraphAdjacency builds an adjacency graph from an explicit edge list.
// Edges are used as given: Neighbors returns only the list stored under a
// point's own key, and no reverse edges are added.
func NewGraphAdjacency(edges map[string][]region.Coord) *GraphAdjacency {
	return &GraphAdjacency{neighbors: edges}
}

// CoordKey is the canonical string key used to index coordinates in a
// GraphAdjacency's edge map.
func CoordKey(c region.Coord) string {
	s := ""
	for _, v := range c {
		s += fmt.Sprintf("%d,", v)
	}
	return s
}

// Neighbors implements region.Adjacency.
func (g *GraphAdjacency) Neighbors(c region.Coord) []region.Coord {
	return g.neighbors[CoordKey(c)]
}

// Unstructured partitions an explicit point set by a greedy breadth-first
// band-fill over its adjacency graph: partitions are filled one at a time
// in index order, each taking the first unassigned point in canonical
// order and then unassigned neighbors reached breadth-first until its
// weight is used up; when the frontier runs dry first, the next
// unassigned point in canonical order joins the same partition. This is a deliberately simple stand-in for a real
// graph partitioner (see DESIGN.md for why no METIS binding was wired);
// it satisfies the Partition contract (contiguous-ish, weight-respecting
// regions) without claiming min-cut optimality.
type Unstructured struct {
	weights   []int
	adjacency region.Adjacency
	regions   []*region.Region
}

// NewUnstructured greedily assigns every point of universe to one of
// len(weights) partitions, respecting adjacency for locality and weights
// for balance.
func NewUnstructured(universe *region.Region, adjacency region.Adjacency, weights []int) (*Unstructured, error) {
	if universe.Empty() {
		return nil, fmt.Errorf("partition: unstructured universe is empty")
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("partition: unstructured requires at least one node weight")
	}
	total := 0
	for _, w := range weights {
		total += w
	}
	if total != universe.Size() {
		return nil, fmt.Errorf("partition: unstructured weights sum to %d, universe has %d cells", total, universe.Size())
	}

	dim := universe.Dim()
	regions := make([]*region.Region, len(weights))
	for i := range regions {
		regions[i] = region.NewRegion(dim)
	}

	assigned := map[string]bool{}
	var all []region.Coord
	universe.EachPoint(func(c region.Coord) bool {
		all = append(all, c.Clone())
		return true
	})

	node := 0
	remaining := weights[0]
	frontier := []region.Coord{}
	for _, c := range all {
		if assigned[CoordKey(c)] {
			continue
		}
		for remaining == 0 {
			node++
			if node >= len(weights) {
				node = len(weights) - 1
				remaining = -1 // sink remainder into the last partition
				break
			}
			remaining = weights[node]
		}
		assignPoint(c, node, regions, assigned)
		if remaining > 0 {
			remaining--
		}
		frontier = append(frontier, c)

		// Drain the BFS frontier into the same partition while capacity
		// and adjacency allow, to keep each partition spatially coherent.
		for len(frontier) > 0 && remaining > 0 {
			cur := frontier[0]
			frontier = frontier[1:]
			for _, n := range adjacency.Neighbors(cur) {
				key := CoordKey(n)
				if assigned[key] || !universe.Contains(n) {
					continue
				}
				assignPoint(n, node, regions, assigned)
				remaining--
				frontier = append(frontier, n)
				if remaining == 0 {
					break
				}
			}
		}
	}

	return &Unstructured{weights: weights, adjacency: adjacency, regions: regions}, nil
}

func assignPoint(c region.Coord, node int, regions []*region.Region, assigned map[string]bool) {
	regions[node].InsertPoint(c)
	assigned[CoordKey(c)] = true
}

// GetRegion implements Partition.
func (u *Unstructured) GetRegion(node int) *region.Region {
	if node < 0 || node >= len(u.regions) {
		return region.NewRegion(0)
	}
	return u.regions[node]
}

// GetWeights implements Partition.
func (u *Unstructured) GetWeights() []int { return u.weights }

// GetAdjacency implements Partition.
func (u *Unstructured) GetAdjacency() region.Adjacency { return u.adjacency }
