package join

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Candidate is a scored pair of node ids with I < J.
type Candidate struct {
	I, J  int
	Score float64
	valid bool
}

// NewCandidate orders the pair so that I < J.
func NewCandidate(i, j int, score float64) Candidate {
	if i > j {
		i, j = j, i
	}
	return Candidate{I: i, J: j, Score: score, valid: true}
}

// Valid reports whether c holds a pair.
func (c Candidate) Valid() bool { return c.valid }

// Better reports whether c should be joined rather than o: lower score first,
// then the lowest (I, J) pair, so the choice does not depend on search order.
func (c Candidate) Better(o Candidate) bool {
	switch {
	case !c.valid:
		return false
	case !o.valid:
		return true
	case c.Score != o.Score:
		return c.Score < o.Score
	case c.I != o.I:
		return c.I < o.I
	}
	return c.J < o.J
}

// Workers returns n, or the number of CPUs when n is not positive.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// chunks splits rows into contiguous ranges, a few per worker so that
// triangular workloads stay balanced.
func chunks(rows, workers int) [][2]int {
	n := min(rows, workers*4)
	if n <= 0 {
		return nil
	}
	out := make([][2]int, 0, n)
	for c := range n {
		out = append(out, [2]int{c * rows / n, (c + 1) * rows / n})
	}
	return out
}

// ArgMin returns the best candidate over all rows, where row(r) returns the
// best candidate of row r (possibly invalid). Rows are scored concurrently on
// up to workers goroutines; the reduction uses Candidate.Better, so the
// result is the same for any number of workers.
func ArgMin(ctx context.Context, workers, rows int, row func(r int) Candidate) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	workers = Workers(workers)
	if workers == 1 || rows < 2 {
		var best Candidate
		for r := range rows {
			if c := row(r); c.Better(best) {
				best = c
			}
		}
		return best, nil
	}
	parts := chunks(rows, workers)
	results := make([]Candidate, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for p, span := range parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var best Candidate
			for r := span[0]; r < span[1]; r++ {
				if c := row(r); c.Better(best) {
					best = c
				}
			}
			results[p] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Candidate{}, err
	}
	var best Candidate
	for _, c := range results {
		if c.Better(best) {
			best = c
		}
	}
	return best, nil
}

// Parallel calls fn for every index in [0, n) on up to workers goroutines.
// Calls for different indexes must not write shared state.
func Parallel(ctx context.Context, workers, n int, fn func(i int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	workers = Workers(workers)
	if workers == 1 {
		for i := range n {
			fn(i)
		}
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, span := range chunks(n, workers) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := span[0]; i < span[1]; i++ {
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}
