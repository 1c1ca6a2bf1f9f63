// Package nj implements canonical O(N^3) neighbor-joining (Saitou and Nei)
// over a full distance matrix. It is the exact baseline the incremental
// builder is measured against.
package nj

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"fasttree/internal/alignment"
	"fasttree/internal/distance"
	"fasttree/internal/join"
	"fasttree/internal/profile"
	"fasttree/internal/tree"
)

type Options struct {
	Workers int // goroutines scoring pairs; <= 0 uses every CPU
}

// Matrix returns the corrected pairwise distances between the sequences of
// aln.
func Matrix(ctx context.Context, aln *alignment.Alignment, workers int) (*mat.SymDense, *distance.Estimator, error) {
	leaves, err := aln.Profiles()
	if err != nil {
		return nil, nil, err
	}
	est := distance.NewEstimator(aln.Alphabet())
	d, err := fill(ctx, leaves, est, workers)
	if err != nil {
		return nil, nil, err
	}
	return d, est, nil
}

func fill(ctx context.Context, leaves []*profile.Profile, est *distance.Estimator, workers int) (*mat.SymDense, error) {
	n := len(leaves)
	d := mat.NewSymDense(n, nil)
	// each row writes only its own upper-triangle cells
	err := join.Parallel(ctx, workers, n, func(i int) {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, est.Profiles(leaves[i], leaves[j]))
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "filling distance matrix")
	}
	return d, nil
}

// Build runs neighbor-joining on aln.
func Build(ctx context.Context, aln *alignment.Alignment, opts Options) (*tree.Tree, join.Stats, error) {
	d, est, err := Matrix(ctx, aln, opts.Workers)
	if err != nil {
		return nil, join.Stats{}, err
	}
	b := &builder{
		d:       d,
		arena:   join.NewArena(aln.Len()),
		tree:    tree.New(aln.Labels()),
		slot:    make([]int, 2*aln.Len()),
		totals:  make([]float64, aln.Len()),
		workers: opts.Workers,
	}
	for i := range aln.Len() {
		b.slot[i] = i
	}
	log.Infof("neighbor-joining %d sequences", aln.Len())
	for b.arena.Len() > 3 {
		if err := b.step(ctx); err != nil {
			return nil, b.stats, err
		}
	}
	if err := b.finish(); err != nil {
		return nil, b.stats, err
	}
	b.stats.Saturated = est.Saturated()
	return b.tree, b.stats, nil
}

// builder keeps one matrix slot per active node; a parent takes over the slot
// of its first child and the second child's slot goes unused.
type builder struct {
	d       *mat.SymDense
	arena   *join.Arena
	tree    *tree.Tree
	slot    []int // node id -> matrix slot
	totals  []float64
	workers int
	stats   join.Stats
}

func (b *builder) dist(i, j int) float64 {
	return b.d.At(b.slot[i], b.slot[j])
}

func (b *builder) step(ctx context.Context) error {
	active := b.arena.Active()
	n := len(active)
	for _, i := range active {
		t := 0.0
		for _, k := range active {
			if k != i {
				t += b.dist(i, k)
			}
		}
		b.totals[b.slot[i]] = t
	}
	scale := float64(n - 2)
	best, err := join.ArgMin(ctx, b.workers, n, func(r int) join.Candidate {
		i := active[r]
		ti := b.totals[b.slot[i]]
		var best join.Candidate
		for _, j := range active[r+1:] {
			q := scale*b.dist(i, j) - ti - b.totals[b.slot[j]]
			if c := join.NewCandidate(i, j, q); c.Better(best) {
				best = c
			}
		}
		return best
	})
	if err != nil {
		return err
	}
	if !best.Valid() {
		return errors.Errorf("no pair to join among %d nodes", n)
	}
	i, j := best.I, best.J
	dij := b.dist(i, j)
	li, lj, clamped := join.Lengths(dij, b.totals[b.slot[i]], b.totals[b.slot[j]], n)
	b.stats.NegativeBranches += clamped

	si := b.slot[i]
	for _, k := range active {
		if k != i && k != j {
			sk := b.slot[k]
			b.d.SetSym(si, sk, join.Reduce(b.dist(i, k), b.dist(j, k), dij))
		}
	}
	u, err := b.join(i, j, li, lj)
	if err != nil {
		return err
	}
	b.slot[u] = si
	log.Debugf("joined %d and %d into %d (Q=%.6g, lengths %.6g %.6g)", i, j, u, best.Score, li, lj)
	return nil
}

func (b *builder) join(i, j int, li, lj float64) (int, error) {
	up := (b.arena.Node(i).Up + li + b.arena.Node(j).Up + lj) / 2
	u, err := b.arena.Join(i, j, up)
	if err != nil {
		return -1, err
	}
	if t := b.tree.Join(i, j, li, lj); t != u {
		return -1, errors.Errorf("tree node %d does not match arena node %d", t, u)
	}
	b.stats.Joins++
	return u, nil
}

// finish joins the lowest pair of the last three nodes and links their
// parent to the third.
func (b *builder) finish() error {
	active := b.arena.Active()
	if len(active) != 3 {
		return errors.Errorf("%d active nodes left, want 3", len(active))
	}
	i, j, k := active[0], active[1], active[2]
	li, lj, duk, clamped := join.Triplet(b.dist(i, j), b.dist(i, k), b.dist(j, k))
	b.stats.NegativeBranches += clamped
	u, err := b.join(i, j, li, lj)
	if err != nil {
		return err
	}
	b.tree.Link(u, k, duk)
	return nil
}
