package profile

import "github.com/pkg/errors"

// Alphabet maps residue characters onto profile symbols. Characters that are
// recognized but do not name exactly one symbol (gaps, unknowns, ambiguity
// codes) carry no weight.
type Alphabet struct {
	name    string
	symbols string
	index   [256]int8 // symbol index, -1 for weightless, -2 for invalid
}

var (
	// Nucleotides is the four-state DNA alphabet. U is read as T and the IUPAC
	// ambiguity codes are accepted as missing data.
	Nucleotides = newAlphabet("nucleotide", "ACGT", "RYSWKMBDHVN-.?", map[byte]byte{'U': 'T'})
	// AminoAcids is the twenty-state protein alphabet.
	AminoAcids = newAlphabet("amino acid", "ACDEFGHIKLMNPQRSTVWY", "BZJXOU*-.?", nil)
)

func newAlphabet(name, symbols, weightless string, aliases map[byte]byte) *Alphabet {
	a := &Alphabet{name: name, symbols: symbols}
	for i := range a.index {
		a.index[i] = -2
	}
	for i := 0; i < len(symbols); i++ {
		a.index[symbols[i]] = int8(i)
	}
	for i := 0; i < len(weightless); i++ {
		a.index[weightless[i]] = -1
	}
	for from, to := range aliases {
		a.index[from] = a.index[to]
	}
	return a
}

func (a *Alphabet) String() string { return a.name }

// Width returns the number of symbols.
func (a *Alphabet) Width() int { return len(a.symbols) }

// Symbols returns the symbols in profile order.
func (a *Alphabet) Symbols() string { return a.symbols }

// Saturation is the expected mismatch fraction between unrelated sequences,
// 1 - 1/width (3/4 for nucleotides).
func (a *Alphabet) Saturation() float64 {
	return 1 - 1/float64(len(a.symbols))
}

// lookup returns the symbol index of r (upper-cased), -1 for a weightless
// residue and false for a character outside the alphabet.
func (a *Alphabet) lookup(r byte) (int, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	i := a.index[r]
	return int(i), i >= -1
}

// Check reports the first character of seq that is not part of the alphabet.
func (a *Alphabet) Check(seq string) error {
	for i := 0; i < len(seq); i++ {
		if _, ok := a.lookup(seq[i]); !ok {
			return errors.Errorf("residue %q at column %d is not a valid %s", seq[i], i+1, a.name)
		}
	}
	return nil
}

// Detect picks the nucleotide alphabet when every residue of every sequence
// is a valid nucleotide, and the amino acid alphabet otherwise.
func Detect(seqs []string) *Alphabet {
	for _, s := range seqs {
		if Nucleotides.Check(s) != nil {
			return AminoAcids
		}
	}
	return Nucleotides
}
