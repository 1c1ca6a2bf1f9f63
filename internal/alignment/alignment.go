// Package alignment holds the validated input of the tree builders: an ordered
// set of uniquely labeled sequences of equal length.
package alignment

import (
	"fmt"
	"slices"
	"strings"

	"github.com/evolbioinfo/goalign/align"
	"github.com/pkg/errors"

	"fasttree/internal/profile"
)

// MinSequences is the smallest alignment a tree can be built from.
const MinSequences = 3

// reserved holds the characters that cannot appear in an unquoted Newick
// label.
const reserved = "():;,[]'\" \t\r\n"

// ErrInput matches every InputError with errors.Is.
var ErrInput = errors.New("invalid input")

// InputError reports an alignment that no tree can be built from. It is
// raised before any profile is constructed.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", ErrInput, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrInput, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrInput }

func (e *InputError) Unwrap() error { return e.Err }

func inputErrorf(format string, a ...any) error {
	return &InputError{Reason: fmt.Sprintf(format, a...)}
}

// Alignment is immutable after construction.
type Alignment struct {
	labels   []string
	seqs     []string
	length   int
	alphabet *profile.Alphabet
}

// New validates labels and sequences and returns the alignment. The alphabet
// is detected from the residues.
func New(labels, seqs []string) (*Alignment, error) {
	return newAlignment(labels, seqs, nil)
}

// FromMap builds an alignment from a label to sequence mapping, ordered by
// label.
func FromMap(m map[string]string) (*Alignment, error) {
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	seqs := make([]string, len(labels))
	for i, l := range labels {
		seqs[i] = m[l]
	}
	return New(labels, seqs)
}

// FromGoalign converts a goalign alignment, keeping goalign's alphabet. The
// label of a sequence is the first word of its name; the rest of a FASTA
// header is a description.
func FromGoalign(aln align.Alignment) (*Alignment, error) {
	var labels, seqs []string
	for _, s := range aln.Sequences() {
		labels = append(labels, Label(s.Name()))
		seqs = append(seqs, s.Sequence())
	}
	a := profile.Nucleotides
	if aln.Alphabet() == align.AMINOACIDS {
		a = profile.AminoAcids
	}
	return newAlignment(labels, seqs, a)
}

// Label returns the first whitespace-delimited word of a sequence header.
func Label(header string) string {
	if f := strings.Fields(header); len(f) > 0 {
		return f[0]
	}
	return ""
}

func newAlignment(labels, seqs []string, a *profile.Alphabet) (*Alignment, error) {
	if len(labels) != len(seqs) {
		return nil, inputErrorf("%d labels for %d sequences", len(labels), len(seqs))
	}
	if len(seqs) == 0 {
		return nil, inputErrorf("empty alignment")
	}
	if len(seqs) < MinSequences {
		return nil, inputErrorf("%d sequences, at least %d are needed", len(seqs), MinSequences)
	}
	seen := make(map[string]bool, len(labels))
	for i, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, inputErrorf("sequence %d has an empty label", i+1)
		}
		if strings.ContainsAny(l, reserved) {
			return nil, inputErrorf("label %q contains a character reserved by newick", l)
		}
		if seen[l] {
			return nil, inputErrorf("duplicate label %q", l)
		}
		seen[l] = true
	}
	length := len(seqs[0])
	if length == 0 {
		return nil, inputErrorf("sequence %q is empty", labels[0])
	}
	for i, s := range seqs {
		if len(s) != length {
			return nil, inputErrorf("sequence %q has length %d, but %q has length %d",
				labels[i], len(s), labels[0], length)
		}
	}
	upper := make([]string, len(seqs))
	for i, s := range seqs {
		upper[i] = strings.ToUpper(s)
	}
	if a == nil {
		a = profile.Detect(upper)
	}
	for i, s := range upper {
		if err := a.Check(s); err != nil {
			return nil, &InputError{Reason: fmt.Sprintf("sequence %q", labels[i]), Err: err}
		}
	}
	return &Alignment{
		labels:   slices.Clone(labels),
		seqs:     upper,
		length:   length,
		alphabet: a,
	}, nil
}

// Len returns the number of sequences.
func (a *Alignment) Len() int { return len(a.seqs) }

// Length returns the number of columns.
func (a *Alignment) Length() int { return a.length }

// Label returns the label of sequence i.
func (a *Alignment) Label(i int) string { return a.labels[i] }

// Sequence returns the upper-cased residues of sequence i.
func (a *Alignment) Sequence(i int) string { return a.seqs[i] }

// Labels returns a copy of the labels in input order.
func (a *Alignment) Labels() []string { return slices.Clone(a.labels) }

// Alphabet returns the residue alphabet.
func (a *Alignment) Alphabet() *profile.Alphabet { return a.alphabet }

// Profiles builds one leaf profile per sequence, in input order.
func (a *Alignment) Profiles() ([]*profile.Profile, error) {
	profiles := make([]*profile.Profile, len(a.seqs))
	for i, s := range a.seqs {
		p, err := profile.Leaf(s, a.alphabet)
		if err != nil {
			return nil, errors.Wrapf(err, "sequence %q", a.labels[i])
		}
		profiles[i] = p
	}
	return profiles, nil
}
