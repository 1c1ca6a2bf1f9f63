// Package infer selects a tree construction strategy and runs it.
package infer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fasttree/internal/alignment"
	"fasttree/internal/incremental"
	"fasttree/internal/join"
	"fasttree/internal/nj"
	"fasttree/internal/tree"
)

var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Algorithm is a tree construction strategy.
type Algorithm int

const (
	// NeighborJoining is exact O(N^3) neighbor-joining over a distance matrix.
	NeighborJoining Algorithm = iota
	// Incremental joins nodes using profiles and a running total profile.
	Incremental
)

func (a Algorithm) String() string {
	switch a {
	case NeighborJoining:
		return "nj"
	case Incremental:
		return "slowtree"
	}
	return "unknown"
}

// ParseAlgorithm maps a command line name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nj", "exact":
		return NeighborJoining, nil
	case "slowtree", "incremental", "approx":
		return Incremental, nil
	}
	return 0, errors.Wrapf(ErrUnknownAlgorithm, "%q (want nj or slowtree)", name)
}

type Options struct {
	Algorithm       Algorithm
	RefreshInterval int // incremental only
	TopHits         int // incremental only
	Workers         int
}

// Build constructs the tree of aln with the selected algorithm and checks the
// result before returning it.
func Build(ctx context.Context, aln *alignment.Alignment, opts Options) (*tree.Tree, join.Stats, error) {
	var (
		t     *tree.Tree
		stats join.Stats
		err   error
	)
	switch opts.Algorithm {
	case NeighborJoining:
		t, stats, err = nj.Build(ctx, aln, nj.Options{Workers: opts.Workers})
	case Incremental:
		t, stats, err = incremental.Build(ctx, aln, incremental.Options{
			RefreshInterval: opts.RefreshInterval,
			TopHits:         opts.TopHits,
			Workers:         opts.Workers,
		})
	default:
		return nil, stats, errors.Wrapf(ErrUnknownAlgorithm, "%d", int(opts.Algorithm))
	}
	if err != nil {
		return nil, stats, errors.Wrapf(err, "%s", opts.Algorithm)
	}
	if err := t.Validate(); err != nil {
		return nil, stats, err
	}
	if stats.Saturated > 0 {
		log.Warnf("%d distances saturated at the correction limit", stats.Saturated)
	}
	if stats.NegativeBranches > 0 {
		log.Warnf("%d negative branch lengths set to zero", stats.NegativeBranches)
	}
	log.Infof("%s: %d joins, %d refreshes, %d full scans", opts.Algorithm, stats.Joins, stats.Refreshes, stats.FullScans)
	return t, stats, nil
}
