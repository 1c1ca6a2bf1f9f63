// Package newick writes trees in Newick format and reads them back through
// gotree.
package newick

import (
	"io"
	"strings"

	"github.com/evolbioinfo/gotree/io/newick"
	gotree "github.com/evolbioinfo/gotree/tree"
	"github.com/pkg/errors"

	"fasttree/internal/tree"
)

// Format returns the Newick string of t, terminated by ';'.
func Format(t *tree.Tree) string {
	return t.Gotree().Newick()
}

// Write writes t to w as one Newick line.
func Write(w io.Writer, t *tree.Tree) error {
	if _, err := io.WriteString(w, Format(t)+"\n"); err != nil {
		return errors.Wrap(err, "writing newick")
	}
	return nil
}

// Read parses exactly one Newick tree from r.
func Read(r io.Reader) (*gotree.Tree, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading newick")
	}
	s := strings.TrimSpace(string(b))
	if n := strings.Count(s, ";"); n != 1 {
		return nil, errors.Errorf("want exactly one newick tree, found %d", n)
	}
	g, err := newick.NewParser(strings.NewReader(s)).Parse()
	if err != nil {
		return nil, errors.Wrap(err, "parsing newick")
	}
	return g, nil
}

// PendantLengths maps every tip name of g to the length of its branch.
func PendantLengths(g *gotree.Tree) map[string]float64 {
	lengths := make(map[string]float64)
	for _, e := range g.Edges() {
		if e.Right().Tip() {
			lengths[e.Right().Name()] = e.Length()
		}
	}
	return lengths
}
