// Package incremental builds neighbor-joining trees from profiles instead of
// a distance matrix.
//
// Every active node carries the profile of its leaves and an up-distance, the
// average distance from the node down to those leaves. The distance between
// two nodes is derived on demand as the corrected profile distance minus both
// up-distances. With 1:1 profile averaging this reproduces neighbor-joining's
// distance reduction on the uncorrected scale. A node's distance to all others
// is estimated in O(L) from a running total profile instead of summing a
// matrix row. The total profile is updated incrementally on every join and
// recomputed from scratch every RefreshInterval joins, which bounds the
// rounding drift of the incremental path and rebuilds the top-hit lists.
package incremental

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fasttree/internal/alignment"
	"fasttree/internal/distance"
	"fasttree/internal/join"
	"fasttree/internal/profile"
	"fasttree/internal/tree"
)

type Options struct {
	RefreshInterval int // joins between refreshes; <= 0 uses RefreshInterval(N)
	TopHits         int // candidate partners kept per node; 0 scores every pair
	Workers         int // goroutines scoring pairs; <= 0 uses every CPU
}

// RefreshInterval returns floor(sqrt(n)), at least 1.
func RefreshInterval(n int) int {
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return max(r, 1)
}

type builder struct {
	est      *distance.Estimator
	arena    *join.Arena
	tree     *tree.Tree
	profiles []*profile.Profile // by node id
	out      []float64          // out-distance estimates by node id
	hits     [][]int            // top-hit partners by node id, nil without top hits
	total    *profile.Total
	upSum    float64 // sum of the active up-distances
	interval int
	opts     Options
	stats    join.Stats
}

// Build constructs the tree of aln.
func Build(ctx context.Context, aln *alignment.Alignment, opts Options) (*tree.Tree, join.Stats, error) {
	b, err := newBuilder(aln, opts)
	if err != nil {
		return nil, join.Stats{}, err
	}
	n := aln.Len()
	log.Infof("building tree of %d sequences from profiles, refresh every %d joins", n, b.interval)
	if opts.TopHits > 0 && n > 3 {
		b.hits = make([][]int, 2*n)
		if err := b.outDistances(ctx); err != nil {
			return nil, b.stats, err
		}
		if err := b.rebuildHits(ctx); err != nil {
			return nil, b.stats, err
		}
	}
	for b.arena.Len() > 3 {
		if err := b.step(ctx); err != nil {
			return nil, b.stats, err
		}
	}
	if err := b.finish(ctx); err != nil {
		return nil, b.stats, err
	}
	b.stats.Saturated = b.est.Saturated()
	return b.tree, b.stats, nil
}

func newBuilder(aln *alignment.Alignment, opts Options) (*builder, error) {
	leaves, err := aln.Profiles()
	if err != nil {
		return nil, err
	}
	n := aln.Len()
	b := &builder{
		est:      distance.NewEstimator(aln.Alphabet()),
		arena:    join.NewArena(n),
		tree:     tree.New(aln.Labels()),
		profiles: append(make([]*profile.Profile, 0, 2*n), leaves...),
		out:      make([]float64, 2*n),
		total:    profile.NewTotal(leaves),
		interval: opts.RefreshInterval,
		opts:     opts,
	}
	if b.interval <= 0 {
		b.interval = RefreshInterval(n)
	}
	return b, nil
}

// dist is the on-demand distance between two active nodes.
func (b *builder) dist(i, j int) float64 {
	d := b.est.Profiles(b.profiles[i], b.profiles[j])
	return max(0, d-b.arena.Node(i).Up-b.arena.Node(j).Up)
}

// outDistance estimates the average distance from node i to the other n-1
// active nodes: the corrected profile distance to the mean active profile,
// scaled by n/(n-1) because the mean includes i itself, less the up-distance
// of i and the mean up-distance of the others. The distance fraction is
// scale-free, so the unnormalized total stands in for the mean.
func (b *builder) outDistance(i, n int) float64 {
	d := b.est.Profiles(b.profiles[i], b.total.Sum()) * float64(n) / float64(n-1)
	up := b.arena.Node(i).Up
	others := (b.upSum - up) / float64(n-1)
	return max(0, d-up-others)
}

func (b *builder) outDistances(ctx context.Context) error {
	active := b.arena.Active()
	n := len(active)
	return join.Parallel(ctx, b.opts.Workers, n, func(r int) {
		b.out[active[r]] = b.outDistance(active[r], n)
	})
}

// score is the neighbor-joining criterion with out-distances in place of
// row totals.
func (b *builder) score(i, j int) float64 {
	return b.dist(i, j) - b.out[i] - b.out[j]
}

func (b *builder) step(ctx context.Context) error {
	n := b.arena.Len()
	if err := b.outDistances(ctx); err != nil {
		return err
	}
	best, err := b.best(ctx)
	if err != nil {
		return err
	}
	if !best.Valid() {
		return errors.Errorf("no pair to join among %d nodes", n)
	}
	i, j := best.I, best.J
	dij := b.dist(i, j)
	// row totals are estimated as (n-1) times the out-distance
	scale := float64(n - 1)
	li, lj, clamped := join.Lengths(dij, scale*b.out[i], scale*b.out[j], n)
	b.stats.NegativeBranches += clamped
	u, err := b.merge(i, j, li, lj)
	if err != nil {
		return err
	}
	log.Debugf("joined %d and %d into %d (score %.6g, lengths %.6g %.6g)", i, j, u, best.Score, li, lj)
	return b.joined(ctx)
}

func (b *builder) best(ctx context.Context) (join.Candidate, error) {
	active := b.arena.Active()
	if b.hits != nil {
		c, err := join.ArgMin(ctx, b.opts.Workers, len(active), func(r int) join.Candidate {
			i := active[r]
			var best join.Candidate
			for _, j := range b.hits[i] {
				if !b.arena.IsActive(j) {
					continue
				}
				if c := join.NewCandidate(i, j, b.score(i, j)); c.Better(best) {
					best = c
				}
			}
			return best
		})
		if err != nil || c.Valid() {
			return c, err
		}
		b.stats.FullScans++
	}
	return join.ArgMin(ctx, b.opts.Workers, len(active), func(r int) join.Candidate {
		i := active[r]
		var best join.Candidate
		for _, j := range active[r+1:] {
			if c := join.NewCandidate(i, j, b.score(i, j)); c.Better(best) {
				best = c
			}
		}
		return best
	})
}

// merge joins i and j: the parent gets the 1:1 average of their profiles and
// replaces them in the total profile.
func (b *builder) merge(i, j int, li, lj float64) (int, error) {
	ni, nj := b.arena.Node(i), b.arena.Node(j)
	up := (ni.Up + li + nj.Up + lj) / 2
	u, err := b.arena.Join(i, j, up)
	if err != nil {
		return -1, err
	}
	if t := b.tree.Join(i, j, li, lj); t != u {
		return -1, errors.Errorf("tree node %d does not match arena node %d", t, u)
	}
	pu := profile.Combine(b.profiles[i], 1, b.profiles[j], 1)
	b.profiles = append(b.profiles, pu)
	b.total.Remove(b.profiles[i])
	b.total.Remove(b.profiles[j])
	b.total.Add(pu)
	b.upSum += up - ni.Up - nj.Up
	b.stats.Joins++
	if b.hits != nil {
		b.hits[i], b.hits[j] = nil, nil
		if b.arena.Len() > 3 {
			b.out[u] = b.outDistance(u, b.arena.Len())
			b.hits[u] = b.ranked(u, b.arena.Active())
		}
	}
	return u, nil
}

// joined runs the scheduled refresh.
func (b *builder) joined(ctx context.Context) error {
	if b.stats.Joins%b.interval != 0 {
		return nil
	}
	return b.refresh(ctx)
}

// refresh recomputes the total profile and the up-distance sum over the
// active nodes and rebuilds the top-hit lists from current profiles.
func (b *builder) refresh(ctx context.Context) error {
	active := b.arena.Active()
	profiles := make([]*profile.Profile, len(active))
	b.upSum = 0
	for k, id := range active {
		profiles[k] = b.profiles[id]
		b.upSum += b.arena.Node(id).Up
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("total profile drift %.3g", b.total.Drift(profiles))
	}
	b.total.Reset(profiles)
	b.stats.Refreshes++
	log.Infof("refresh %d: %d joins done, %d nodes active", b.stats.Refreshes, b.stats.Joins, len(active))
	if b.hits == nil || len(active) <= 3 {
		return nil
	}
	if err := b.outDistances(ctx); err != nil {
		return err
	}
	return b.rebuildHits(ctx)
}

func (b *builder) rebuildHits(ctx context.Context) error {
	active := slices.Clone(b.arena.Active())
	return join.Parallel(ctx, b.opts.Workers, len(active), func(r int) {
		b.hits[active[r]] = b.ranked(active[r], active)
	})
}

// ranked returns the TopHits best partners of i among active.
func (b *builder) ranked(i int, active []int) []int {
	type hit struct {
		id    int
		score float64
	}
	hits := make([]hit, 0, len(active)-1)
	for _, j := range active {
		if j != i {
			hits = append(hits, hit{j, b.score(i, j)})
		}
	}
	slices.SortFunc(hits, func(x, y hit) int {
		if c := cmp.Compare(x.score, y.score); c != 0 {
			return c
		}
		return cmp.Compare(x.id, y.id)
	})
	ids := make([]int, 0, b.opts.TopHits)
	for _, h := range hits[:min(len(hits), b.opts.TopHits)] {
		ids = append(ids, h.id)
	}
	return ids
}

// finish resolves the last three nodes exactly as neighbor-joining does and
// closes the tree with the final edge.
func (b *builder) finish(ctx context.Context) error {
	active := b.arena.Active()
	if len(active) != 3 {
		return errors.Errorf("%d active nodes left, want 3", len(active))
	}
	i, j, k := active[0], active[1], active[2]
	li, lj, duk, clamped := join.Triplet(b.dist(i, j), b.dist(i, k), b.dist(j, k))
	b.stats.NegativeBranches += clamped
	u, err := b.merge(i, j, li, lj)
	if err != nil {
		return err
	}
	b.tree.Link(u, k, duk)
	return b.joined(ctx)
}
