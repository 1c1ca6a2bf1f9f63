// Package tree is the output model of the tree builders: an unrooted binary
// tree grown bottom-up by joins and closed by one final edge between the last
// two active nodes.
package tree

import (
	gotree "github.com/evolbioinfo/gotree/tree"
	"github.com/pkg/errors"
)

var ErrMalformed = errors.New("malformed tree")

const none = -1

// Node is a leaf (Label set, no children) or an internal node with two
// children and a branch length to each.
type Node struct {
	ID       int
	Label    string
	Children [2]int
	Lengths  [2]float64
	Size     int
}

// Leaf reports whether n is a leaf.
func (n Node) Leaf() bool { return n.Children[0] == none }

// Tree stores leaves first, in input order, followed by the internal nodes in
// the order they were created.
type Tree struct {
	nodes      []Node
	leaves     int
	link       [2]int
	linkLength float64
}

// New returns a tree holding only the given leaves.
func New(labels []string) *Tree {
	t := &Tree{
		nodes:  make([]Node, len(labels), 2*len(labels)),
		leaves: len(labels),
		link:   [2]int{none, none},
	}
	for i, l := range labels {
		t.nodes[i] = Node{ID: i, Label: l, Children: [2]int{none, none}, Size: 1}
	}
	return t
}

// Join adds the parent of a and b and returns its id.
func (t *Tree) Join(a, b int, la, lb float64) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		ID:       id,
		Children: [2]int{a, b},
		Lengths:  [2]float64{la, lb},
		Size:     t.nodes[a].Size + t.nodes[b].Size,
	})
	return id
}

// Link connects the two remaining nodes with the final edge.
func (t *Tree) Link(a, b int, length float64) {
	t.link = [2]int{a, b}
	t.linkLength = length
}

// Leaves returns the number of leaves.
func (t *Tree) Leaves() int { return t.leaves }

// Internal returns the number of internal nodes.
func (t *Tree) Internal() int { return len(t.nodes) - t.leaves }

// Len returns the total number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns node id.
func (t *Tree) Node(id int) Node { return t.nodes[id] }

// Ends returns the final edge.
func (t *Tree) Ends() (a, b int, length float64) {
	return t.link[0], t.link[1], t.linkLength
}

// Labels returns the leaf labels in input order.
func (t *Tree) Labels() []string {
	labels := make([]string, t.leaves)
	for i := range labels {
		labels[i] = t.nodes[i].Label
	}
	return labels
}

// Root returns the end of the final edge the tree is drawn from: an internal
// node whenever there is one.
func (t *Tree) Root() int {
	a, b := t.link[0], t.link[1]
	if t.nodes[a].Leaf() && b != none && !t.nodes[b].Leaf() {
		return b
	}
	return a
}

func (t *Tree) other(root int) int {
	if root == t.link[0] {
		return t.link[1]
	}
	return t.link[0]
}

// Validate checks that t is a complete unrooted binary tree: n leaves, n-2
// internal nodes, every node but the two ends of the final edge used as a
// child exactly once, and no negative or undefined branch length.
func (t *Tree) Validate() error {
	if t.leaves < 3 {
		return errors.Wrapf(ErrMalformed, "%d leaves", t.leaves)
	}
	if t.Internal() != t.leaves-2 {
		return errors.Wrapf(ErrMalformed, "%d leaves but %d internal nodes", t.leaves, t.Internal())
	}
	if t.link[0] == none || t.link[1] == none || t.link[0] == t.link[1] {
		return errors.Wrap(ErrMalformed, "final edge missing")
	}
	if !(t.linkLength >= 0) {
		return errors.Wrapf(ErrMalformed, "final edge length %g", t.linkLength)
	}
	parents := make([]int, len(t.nodes))
	for _, n := range t.nodes[t.leaves:] {
		for c, child := range n.Children {
			if child < 0 || child >= n.ID {
				return errors.Wrapf(ErrMalformed, "node %d has child %d", n.ID, child)
			}
			if !(n.Lengths[c] >= 0) {
				return errors.Wrapf(ErrMalformed, "branch %d-%d has length %g", n.ID, child, n.Lengths[c])
			}
			parents[child]++
		}
	}
	for id, p := range parents {
		want := 1
		if id == t.link[0] || id == t.link[1] {
			want = 0
		}
		if p != want {
			return errors.Wrapf(ErrMalformed, "node %d has %d parents", id, p)
		}
	}
	return nil
}

// PostOrder visits every node after its descendants, starting from Root and
// treating the other end of the final edge as a child of the root. fn gets the
// parent id (-1 for the root) and the length of the edge to it.
func (t *Tree) PostOrder(fn func(n Node, parent int, length float64)) {
	var walk func(id, parent int, length float64)
	walk = func(id, parent int, length float64) {
		n := t.nodes[id]
		if !n.Leaf() {
			walk(n.Children[0], id, n.Lengths[0])
			walk(n.Children[1], id, n.Lengths[1])
		}
		fn(n, parent, length)
	}
	root := t.Root()
	walk(t.other(root), root, t.linkLength)
	n := t.nodes[root]
	if !n.Leaf() {
		walk(n.Children[0], root, n.Lengths[0])
		walk(n.Children[1], root, n.Lengths[1])
	}
	fn(n, none, 0)
}

// Gotree converts t into a gotree tree drawn from Root, whose three
// neighbors are its two children and the other end of the final edge.
func (t *Tree) Gotree() *gotree.Tree {
	g := gotree.NewTree()
	nodes := make([]*gotree.Node, len(t.nodes))
	t.PostOrder(func(n Node, parent int, length float64) {
		gn := g.NewNode()
		if n.Leaf() {
			gn.SetName(n.Label)
		}
		nodes[n.ID] = gn
	})
	t.PostOrder(func(n Node, parent int, length float64) {
		if parent == none {
			g.SetRoot(nodes[n.ID])
			return
		}
		e := g.ConnectNodes(nodes[parent], nodes[n.ID])
		e.SetLength(length)
	})
	return g
}
