// Package profile turns aligned sequences into per-column residue frequency
// profiles and aggregates them.
//
// A profile is kept in mass form: every column has a coverage weight in [0,1]
// and one mass per symbol, the masses of a column summing to its weight.
// Dividing the masses by the weight gives the residue frequencies of the
// column. Gaps and unknown residues contribute neither mass nor weight, so a
// distance between two profiles is taken over the columns both of them cover.
// In this form averaging and summing profiles is linear, which is what lets
// the running total profile be updated in O(L) per join.
package profile

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Profile is an L x |alphabet| residue profile in mass form.
type Profile struct {
	width  int
	mass   []float64 // column-major, mass[c*width+s]
	weight []float64
}

func newProfile(length, width int) *Profile {
	return &Profile{
		width:  width,
		mass:   make([]float64, length*width),
		weight: make([]float64, length),
	}
}

// Leaf builds the profile of a single sequence: one-hot columns of weight 1
// for residues, empty columns of weight 0 for gaps and unknowns.
func Leaf(seq string, a *Alphabet) (*Profile, error) {
	p := newProfile(len(seq), a.Width())
	for c := 0; c < len(seq); c++ {
		s, ok := a.lookup(seq[c])
		if !ok {
			return nil, errors.Errorf("residue %q at column %d is not a valid %s", seq[c], c+1, a)
		}
		if s < 0 {
			continue
		}
		p.mass[c*p.width+s] = 1
		p.weight[c] = 1
	}
	return p, nil
}

// Combine returns the weighted average (wa*a + wb*b) / (wa+wb). The cost is
// linear in the profile size and independent of how many sequences a and b
// summarize. Weights must be non-negative with a positive sum.
func Combine(a *Profile, wa float64, b *Profile, wb float64) *Profile {
	a.mustMatch(b)
	sum := wa + wb
	if wa < 0 || wb < 0 || sum <= 0 {
		panic(errors.Errorf("profile: invalid combine weights %g and %g", wa, wb))
	}
	p := newProfile(a.Len(), a.width)
	floats.AddScaled(p.mass, wa/sum, a.mass)
	floats.AddScaled(p.mass, wb/sum, b.mass)
	floats.AddScaled(p.weight, wa/sum, a.weight)
	floats.AddScaled(p.weight, wb/sum, b.weight)
	return p
}

// Overlap returns the expected number of mismatching columns between p and q
// and the number of columns they jointly cover:
//
//	coverage = sum_c w_p[c]*w_q[c]
//	mismatch = coverage - sum_c sum_s m_p[c][s]*m_q[c][s]
//
// Both are bilinear in p and q. The raw fraction of differing sites is
// mismatch/coverage.
func Overlap(p, q *Profile) (mismatch, coverage float64) {
	p.mustMatch(q)
	coverage = floats.Dot(p.weight, q.weight)
	mismatch = coverage - floats.Dot(p.mass, q.mass)
	if mismatch < 0 {
		mismatch = 0
	}
	return mismatch, coverage
}

// Len returns the number of columns.
func (p *Profile) Len() int { return len(p.weight) }

// Width returns the number of symbols per column.
func (p *Profile) Width() int { return p.width }

// Weight returns the coverage weight of column c.
func (p *Profile) Weight(c int) float64 { return p.weight[c] }

// Column returns the residue frequencies of column c. They sum to 1 for a
// covered column and are all zero for an uncovered one.
func (p *Profile) Column(c int) []float64 {
	col := make([]float64, p.width)
	if w := p.weight[c]; w > 0 {
		copy(col, p.mass[c*p.width:(c+1)*p.width])
		floats.Scale(1/w, col)
	}
	return col
}

// EqualWithinAbs reports whether p and q have the same shape and every mass
// and weight agrees within tol.
func (p *Profile) EqualWithinAbs(q *Profile, tol float64) bool {
	if p.width != q.width || len(p.weight) != len(q.weight) {
		return false
	}
	return floats.EqualApprox(p.mass, q.mass, tol) && floats.EqualApprox(p.weight, q.weight, tol)
}

func (p *Profile) clone() *Profile {
	c := newProfile(p.Len(), p.width)
	copy(c.mass, p.mass)
	copy(c.weight, p.weight)
	return c
}

func (p *Profile) mustMatch(q *Profile) {
	if p.width != q.width || len(p.weight) != len(q.weight) {
		panic(errors.Errorf("profile: shape %dx%d does not match %dx%d",
			p.Len(), p.width, q.Len(), q.width))
	}
}

// Total is the running sum of the profiles of the active nodes. The sum is
// kept unnormalized; Mean divides by the member count.
type Total struct {
	sum *Profile
	n   int
}

// NewTotal sums profiles, which must be non-empty and share one shape.
func NewTotal(profiles []*Profile) *Total {
	if len(profiles) == 0 {
		panic("profile: total of no profiles")
	}
	t := &Total{sum: newProfile(profiles[0].Len(), profiles[0].width)}
	t.Reset(profiles)
	return t
}

// Add includes p in the total.
func (t *Total) Add(p *Profile) {
	t.sum.mustMatch(p)
	floats.Add(t.sum.mass, p.mass)
	floats.Add(t.sum.weight, p.weight)
	t.n++
}

// Remove takes p out of the total. p must have been added before.
func (t *Total) Remove(p *Profile) {
	t.sum.mustMatch(p)
	floats.Sub(t.sum.mass, p.mass)
	floats.Sub(t.sum.weight, p.weight)
	t.n--
}

// Reset recomputes the total from scratch, discarding any rounding drift
// accumulated by Add and Remove.
func (t *Total) Reset(profiles []*Profile) {
	for i := range t.sum.mass {
		t.sum.mass[i] = 0
	}
	for i := range t.sum.weight {
		t.sum.weight[i] = 0
	}
	t.n = 0
	for _, p := range profiles {
		t.Add(p)
	}
}

// Len returns the number of profiles in the total.
func (t *Total) Len() int { return t.n }

// Sum returns the unnormalized sum. It is owned by t and changes with it.
func (t *Total) Sum() *Profile { return t.sum }

// Mean returns the average of the member profiles.
func (t *Total) Mean() *Profile {
	m := t.sum.clone()
	if t.n > 0 {
		floats.Scale(1/float64(t.n), m.mass)
		floats.Scale(1/float64(t.n), m.weight)
	}
	return m
}

// Drift returns the largest absolute difference between the running sum and
// a fresh sum of profiles.
func (t *Total) Drift(profiles []*Profile) float64 {
	fresh := NewTotal(profiles)
	drift := 0.0
	for i, v := range t.sum.mass {
		drift = math.Max(drift, math.Abs(v-fresh.sum.mass[i]))
	}
	for i, v := range t.sum.weight {
		drift = math.Max(drift, math.Abs(v-fresh.sum.weight[i]))
	}
	return drift
}
