// Package distance estimates evolutionary distances between profiles with a
// Jukes-Cantor correction for multiple substitutions.
package distance

import (
	"math"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fasttree/internal/profile"
)

// MaxDistance is returned for saturated pairs, whose observed divergence is
// too high for the correction to give a finite estimate. Below saturation the
// correction is at most -ln(2^-53) < 37, so the cap stays above every finite
// estimate.
const MaxDistance = 40.0

// Correct applies the Jukes-Cantor correction d = -b*ln(1 - f/b) to the raw
// fraction of differing sites f, where b is the alphabet's saturation level
// (3/4 for nucleotides). At f >= b it returns MaxDistance and
// saturated = true. The result is strictly increasing on [0, b).
func Correct(f, b float64) (d float64, saturated bool) {
	if f <= 0 {
		return 0, false
	}
	if f >= b {
		return MaxDistance, true
	}
	d = -b * math.Log(1-f/b)
	// f/b rounds to 1 only within an ulp of saturation
	if math.IsInf(d, 0) || math.IsNaN(d) || d > MaxDistance {
		return MaxDistance, true
	}
	return d, false
}

// Estimator computes corrected distances for one alphabet and counts the
// saturated estimates it had to cap. It is safe for concurrent use.
type Estimator struct {
	alphabet  *profile.Alphabet
	saturated atomic.Int64
}

func NewEstimator(a *profile.Alphabet) *Estimator {
	return &Estimator{alphabet: a}
}

// Profiles returns the corrected distance between p and q: the expected
// per-column mismatch averaged over the columns both cover, then corrected.
// Profiles sharing no covered column are treated as saturated.
func (e *Estimator) Profiles(p, q *profile.Profile) float64 {
	return e.Fraction(profile.Overlap(p, q))
}

// Fraction corrects the raw fraction mismatch/coverage.
func (e *Estimator) Fraction(mismatch, coverage float64) float64 {
	if coverage <= 0 {
		e.saturate(math.NaN())
		return MaxDistance
	}
	d, saturated := Correct(mismatch/coverage, e.alphabet.Saturation())
	if saturated {
		e.saturate(mismatch / coverage)
	}
	return d
}

// Sequences returns the corrected distance between two aligned sequences.
func (e *Estimator) Sequences(a, b string) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("sequences have lengths %d and %d", len(a), len(b))
	}
	pa, err := profile.Leaf(a, e.alphabet)
	if err != nil {
		return 0, err
	}
	pb, err := profile.Leaf(b, e.alphabet)
	if err != nil {
		return 0, err
	}
	return e.Profiles(pa, pb), nil
}

// Saturated returns how many estimates were capped at MaxDistance.
func (e *Estimator) Saturated() int64 { return e.saturated.Load() }

func (e *Estimator) saturate(f float64) {
	if e.saturated.Add(1) == 1 {
		if math.IsNaN(f) {
			log.Warnf("profiles share no covered column, distance capped at %g", MaxDistance)
		} else {
			log.Warnf("divergence %.4f is saturated, distance capped at %g", f, MaxDistance)
		}
	}
}
