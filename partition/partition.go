// Package partition provides the abstract map from node index to Region
// that decomposition schemes implement, plus two concrete schemes
// (striping and recursive bisection) and one for unstructured adjacency.
package partition

import "github.com/notargets/hiparstencil/region"

// Partition maps a node (rank) index to the Region of lattice points it
// owns, and exposes the weights and adjacency used to derive that
// mapping.
type Partition interface {
	// GetRegion returns the set of cells owned by node.
	GetRegion(node int) *region.Region
	// GetWeights returns the per-node weight vector the partition was
	// built from.
	GetWeights() []int
	// GetAdjacency returns the non-lattice neighbor relation, or nil for
	// lattice (cube/torus) partitions.
	GetAdjacency() region.Adjacency
}
