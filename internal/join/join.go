// Package join holds the state and arithmetic shared by the neighbor-joining
// tree builders: the arena of active nodes, the branch length and distance
// reduction formulas, and the parallel search for the best pair to join.
package join

import (
	"slices"

	"github.com/pkg/errors"
)

// Node is the arena record of a leaf or of an internal node created by a join.
type Node struct {
	ID   int
	Size int     // number of leaves below the node
	Up   float64 // average distance from the node down to its leaves
}

// Arena owns the nodes of one tree construction. Leaves have ids 0..n-1 in
// input order, internal nodes get the following ids in join order.
type Arena struct {
	nodes  []Node
	active []int // ascending ids
	alive  []bool
}

// NewArena returns an arena with the given number of active leaves.
func NewArena(leaves int) *Arena {
	a := &Arena{
		nodes:  make([]Node, leaves, 2*leaves),
		active: make([]int, leaves),
		alive:  make([]bool, leaves, 2*leaves),
	}
	for i := range leaves {
		a.nodes[i] = Node{ID: i, Size: 1}
		a.active[i] = i
		a.alive[i] = true
	}
	return a
}

// Len returns the number of active nodes.
func (a *Arena) Len() int { return len(a.active) }

// Active returns the active node ids in ascending order. The slice is owned by
// the arena and is invalidated by the next Join.
func (a *Arena) Active() []int { return a.active }

// Node returns the record of node id.
func (a *Arena) Node(id int) Node { return a.nodes[id] }

// IsActive reports whether node id has not been joined yet.
func (a *Arena) IsActive(id int) bool { return id < len(a.alive) && a.alive[id] }

// Join retires the active nodes i and j and activates their parent, whose id
// is returned.
func (a *Arena) Join(i, j int, up float64) (int, error) {
	if i == j || !a.IsActive(i) || !a.IsActive(j) {
		return -1, errors.Errorf("cannot join nodes %d and %d", i, j)
	}
	id := len(a.nodes)
	a.nodes = append(a.nodes, Node{ID: id, Size: a.nodes[i].Size + a.nodes[j].Size, Up: up})
	a.alive = append(a.alive, true)
	a.alive[i], a.alive[j] = false, false
	a.active = slices.DeleteFunc(a.active, func(k int) bool { return k == i || k == j })
	a.active = append(a.active, id)
	return id, nil
}

// Stats counts what happened during one tree construction.
type Stats struct {
	Joins            int
	Refreshes        int
	FullScans        int   // top-hit searches that fell back to scanning all pairs
	NegativeBranches int   // branch lengths clamped to zero
	Saturated        int64 // distances capped at the saturation limit
}

// Lengths returns the branch lengths from the parent of i and j to each of
// them, given their distance d, their total distances ti and tj to the other
// active nodes, and the active count n >= 3:
//
//	len(i) = d/2 + (ti - tj) / (2(n-2)),  len(j) = d - len(i)
//
// A negative length is clamped to zero and counted in clamped. The topology is
// left alone.
func Lengths(d, ti, tj float64, n int) (li, lj float64, clamped int) {
	li = d/2 + (ti-tj)/(2*float64(n-2))
	lj = d - li
	if li < 0 {
		li = 0
		clamped++
	}
	if lj < 0 {
		lj = 0
		clamped++
	}
	return li, lj, clamped
}

// Reduce returns the distance from the parent of i and j to k, clamped at 0.
func Reduce(dik, djk, dij float64) float64 {
	return max(0, (dik+djk-dij)/2)
}

// Triplet resolves the last three active nodes i < j < k. The Q-criterion is
// equal for all three pairs at that point, so i and j are joined; it returns
// their branch lengths and the distance from their parent to k, which becomes
// the length of the final edge.
func Triplet(dij, dik, djk float64) (li, lj, duk float64, clamped int) {
	li, lj, clamped = Lengths(dij, dij+dik, dij+djk, 3)
	return li, lj, Reduce(dik, djk, dij), clamped
}
