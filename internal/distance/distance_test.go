package distance

import (
	"math"
	"math/rand"
	"testing"

	"fasttree/internal/profile"
)

func TestCorrectKnownValues(t *testing.T) {
	d, sat := Correct(0, 0.75)
	if d != 0 || sat {
		t.Errorf("Correct(0) = %g, %t", d, sat)
	}
	d, sat = Correct(0.5, 0.75)
	want := -0.75 * math.Log(1-4.0/3*0.5)
	if math.Abs(d-want) > 1e-15 || sat {
		t.Errorf("Correct(0.5) = %g, %t, want %g", d, sat, want)
	}
}

func TestCorrectMonotonic(t *testing.T) {
	prev := -1.0
	check := func(f float64) {
		d, sat := Correct(f, 0.75)
		if sat {
			t.Fatalf("Correct(%g) saturated", f)
		}
		if d <= prev {
			t.Fatalf("Correct(%g) = %g, not above %g", f, d, prev)
		}
		if d >= MaxDistance {
			t.Fatalf("Correct(%g) = %g reaches the cap", f, d)
		}
		prev = d
	}
	for f := 0.0; f < 0.749; f += 0.001 {
		check(f)
	}
	for _, f := range []float64{0.7495, 0.7499, 0.74999, 0.749999, 0.7499999999, math.Nextafter(0.75, 0)} {
		check(f)
	}
}

func TestCorrectNearSaturationFollowsFormula(t *testing.T) {
	for _, f := range []float64{0.74, 0.745} {
		d, sat := Correct(f, 0.75)
		want := -0.75 * math.Log(1-f/0.75)
		if sat || math.Abs(d-want) > 1e-12 {
			t.Errorf("Correct(%g) = %g, %t, want %g", f, d, sat, want)
		}
	}
}

func TestCorrectSaturation(t *testing.T) {
	for _, f := range []float64{0.75, 0.7500001, 0.9, 1} {
		d, sat := Correct(f, 0.75)
		if !sat || d != MaxDistance {
			t.Errorf("Correct(%g) = %g, %t, want %g, true", f, d, sat, MaxDistance)
		}
		if math.IsNaN(d) || math.IsInf(d, 0) {
			t.Errorf("Correct(%g) is not finite", f)
		}
	}
}

func randomSeq(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT-"[r.Intn(5)]
	}
	return string(b)
}

func TestProfilesSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	e := NewEstimator(profile.Nucleotides)
	for i := 0; i < 200; i++ {
		a, err := profile.Leaf(randomSeq(r, 40), profile.Nucleotides)
		if err != nil {
			t.Fatal(err)
		}
		b, err := profile.Leaf(randomSeq(r, 40), profile.Nucleotides)
		if err != nil {
			t.Fatal(err)
		}
		c := profile.Combine(a, 1, b, 2)
		if e.Profiles(a, b) != e.Profiles(b, a) {
			t.Fatalf("leaf distance not symmetric")
		}
		if e.Profiles(a, c) != e.Profiles(c, a) {
			t.Fatalf("leaf/internal distance not symmetric")
		}
		if d := e.Profiles(a, a); d != 0 {
			t.Fatalf("self distance %g", d)
		}
	}
}

func TestSequences(t *testing.T) {
	e := NewEstimator(profile.Nucleotides)
	d, err := e.Sequences("AAAA", "AAAC")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := Correct(0.25, 0.75)
	if d != want {
		t.Errorf("distance %g, want %g", d, want)
	}
	// gap columns are ignored
	d, err = e.Sequences("AAAA-", "AAACG")
	if err != nil {
		t.Fatal(err)
	}
	if d != want {
		t.Errorf("distance with gap %g, want %g", d, want)
	}
	if _, err := e.Sequences("AAA", "AAAA"); err == nil {
		t.Errorf("expected length mismatch error")
	}
}

func TestSaturatedCount(t *testing.T) {
	e := NewEstimator(profile.Nucleotides)
	if d, _ := e.Sequences("AAAA", "CCCC"); d != MaxDistance {
		t.Errorf("distance %g, want %g", d, MaxDistance)
	}
	if d, _ := e.Sequences("AA--", "--CC"); d != MaxDistance {
		t.Errorf("distance without overlap %g, want %g", d, MaxDistance)
	}
	if n := e.Saturated(); n != 2 {
		t.Errorf("saturated count %d, want 2", n)
	}
}
