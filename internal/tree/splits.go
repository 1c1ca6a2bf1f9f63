package tree

import (
	"slices"

	"github.com/fredericlemoine/bitset"
	"github.com/pkg/errors"
)

var ErrLabelMismatch = errors.New("trees have different leaf sets")

// Split is the bipartition of the leaves induced by one internal edge. Bits
// index the leaf labels in sorted order; the side holding the first label is
// always the unset one, so equal bipartitions have equal bitsets.
type Split struct {
	split *bitset.BitSet
}

// Length returns the number of leaves the split is defined over.
func (s *Split) Length() int {
	return int(s.split.Len())
}

// Conflict reports whether s1 and s2 cannot both be edges of one tree, i.e.
// all four combinations of sides occur.
func (s1 *Split) Conflict(s2 *Split) (bool, error) {
	if s1.Length() != s2.Length() {
		return false, errors.Errorf("split lengths %d and %d do not match", s1.Length(), s2.Length())
	}
	comb := [4]bool{}
	for i := range uint(s1.Length()) {
		k := 0
		if s1.split.Test(i) {
			k += 2
		}
		if s2.split.Test(i) {
			k++
		}
		comb[k] = true
		if comb[0] && comb[1] && comb[2] && comb[3] {
			return true, nil
		}
	}
	return false, nil
}

// Clade returns the labels on the set side of the split.
func (s *Split) Clade(taxa []string) []string {
	clade := make([]string, 0)
	for i := range s.split.Len() {
		if s.split.Test(i) {
			clade = append(clade, taxa[i])
		}
	}
	return clade
}

// SortedLabels returns the leaf labels in the order split bits refer to.
func (t *Tree) SortedLabels() []string {
	labels := t.Labels()
	slices.Sort(labels)
	return labels
}

// Splits returns the n-3 non-trivial splits of t.
func (t *Tree) Splits() []*Split {
	sorted := t.SortedLabels()
	bit := make([]uint, t.leaves)
	for i := range t.leaves {
		k, _ := slices.BinarySearch(sorted, t.nodes[i].Label)
		bit[i] = uint(k)
	}
	n := uint(t.leaves)
	below := make([]*bitset.BitSet, len(t.nodes))
	splits := make([]*Split, 0, t.leaves-3)
	t.PostOrder(func(node Node, parent int, length float64) {
		b := bitset.New(n)
		if node.Leaf() {
			b.Set(bit[node.ID])
		} else {
			for _, c := range node.Children {
				for i := range n {
					if below[c].Test(i) {
						b.Set(i)
					}
				}
			}
		}
		below[node.ID] = b
		if parent == none || node.Size < 2 || node.Size > t.leaves-2 {
			return
		}
		splits = append(splits, &Split{split: canonical(b)})
	})
	return splits
}

func canonical(b *bitset.BitSet) *bitset.BitSet {
	if !b.Test(0) {
		return b
	}
	c := bitset.New(b.Len())
	for i := range b.Len() {
		if !b.Test(i) {
			c.Set(i)
		}
	}
	return c
}

// CountMatches returns how many splits of ss equal split.
func CountMatches(ss []*Split, split *Split) int {
	count := 0
	for _, s := range ss {
		if s.split.Equal(split.split) {
			count++
		}
	}
	return count
}

// Comparison summarizes the topological difference between two trees on the
// same leaves.
type Comparison struct {
	Splits      int // non-trivial splits per tree
	Shared      int
	RF          int // Robinson-Foulds distance
	Conflicting int // splits of the second tree incompatible with the first
}

// Compare computes the Robinson-Foulds distance between a and b.
func Compare(a, b *Tree) (Comparison, error) {
	if !slices.Equal(a.SortedLabels(), b.SortedLabels()) {
		return Comparison{}, ErrLabelMismatch
	}
	sa, sb := a.Splits(), b.Splits()
	cmp := Comparison{Splits: len(sa)}
	for _, s := range sb {
		if CountMatches(sa, s) > 0 {
			cmp.Shared++
			continue
		}
		for _, o := range sa {
			conflict, err := o.Conflict(s)
			if err != nil {
				return Comparison{}, err
			}
			if conflict {
				cmp.Conflicting++
				break
			}
		}
	}
	cmp.RF = len(sa) + len(sb) - 2*cmp.Shared
	return cmp, nil
}
