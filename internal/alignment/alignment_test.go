package alignment

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"

	"fasttree/internal/profile"
)

const testFasta = `>s1
ACGTACGTAC
>s2
ACGTACGTTC
>s3
acgtacg-ac
>s4
TCGTACGTAC
`

func TestNew(t *testing.T) {
	a, err := New([]string{"x", "y", "z"}, []string{"acgt", "ACGA", "AC-T"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != 3 || a.Length() != 4 {
		t.Errorf("%d x %d, want 3 x 4", a.Len(), a.Length())
	}
	if a.Sequence(0) != "ACGT" {
		t.Errorf("sequence not upper-cased: %s", a.Sequence(0))
	}
	if a.Alphabet() != profile.Nucleotides {
		t.Errorf("alphabet %s", a.Alphabet())
	}
	if strings.Join(a.Labels(), ",") != "x,y,z" {
		t.Errorf("labels %v", a.Labels())
	}
}

func TestNewInputErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		labels, seqs []string
	}{
		"empty":          {nil, nil},
		"too few":        {[]string{"a", "b"}, []string{"AC", "AG"}},
		"unequal length": {[]string{"a", "b", "c"}, []string{"ACGT", "ACG", "ACGT"}},
		"duplicate":      {[]string{"a", "b", "a"}, []string{"ACGT", "ACGT", "ACGT"}},
		"empty label":    {[]string{"a", " ", "c"}, []string{"ACGT", "ACGT", "ACGT"}},
		"zero length":    {[]string{"a", "b", "c"}, []string{"", "", ""}},
		"label count":    {[]string{"a", "b"}, []string{"A", "A", "A"}},
		"bad residue":    {[]string{"a", "b", "c"}, []string{"ACGT", "AC!T", "ACGT"}},
	} {
		a, err := New(tc.labels, tc.seqs)
		if a != nil {
			t.Errorf("%s: got an alignment", name)
		}
		if !errors.Is(err, ErrInput) {
			t.Errorf("%s: error %v is not an input error", name, err)
		}
		var ie *InputError
		if !errors.As(err, &ie) {
			t.Errorf("%s: error %v is not an *InputError", name, err)
		}
	}
}

func TestFromMapOrdersByLabel(t *testing.T) {
	a, err := FromMap(map[string]string{"c": "AAAA", "a": "CCCC", "b": "GGGG"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(a.Labels(), ",") != "a,b,c" || a.Sequence(0) != "CCCC" {
		t.Errorf("labels %v, first %s", a.Labels(), a.Sequence(0))
	}
}

func TestProtein(t *testing.T) {
	a, err := New([]string{"a", "b", "c"}, []string{"MKV-L", "MRVEL", "MKIEX"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Alphabet() != profile.AminoAcids {
		t.Errorf("alphabet %s, want amino acid", a.Alphabet())
	}
	ps, err := a.Profiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 3 || ps[0].Width() != 20 {
		t.Errorf("%d profiles of width %d", len(ps), ps[0].Width())
	}
}

func TestReadFasta(t *testing.T) {
	a, err := Read(strings.NewReader(testFasta), FormatAuto)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != 4 || a.Length() != 10 {
		t.Fatalf("%d x %d, want 4 x 10", a.Len(), a.Length())
	}
	if a.Label(0) != "s1" {
		t.Errorf("first label %q, want s1", a.Label(0))
	}
}

func TestReadDuplicateHeaders(t *testing.T) {
	for _, in := range []string{
		">a\nACGT\n>a\nACGA\n>c\nACGC\n",
		">a\nACGT\n>a\nACGT\n>c\nACGC\n",
		">a first\nACGT\n>a second\nACGA\n>c\nACGC\n",
	} {
		a, err := Read(strings.NewReader(in), FormatAuto)
		if !errors.Is(err, ErrInput) || !strings.Contains(err.Error(), `duplicate label "a"`) {
			t.Errorf("%q: got %v, error %v", in, a, err)
		}
	}
}

func TestReadKeepsFirstWordOfHeader(t *testing.T) {
	in := ">s1 Homo sapiens\nACGT\n>s2 (chimp): x\nACGA\n>s3\tgorilla\nACGC\n"
	a, err := Read(strings.NewReader(in), FormatFasta)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(a.Labels(), ","); got != "s1,s2,s3" {
		t.Errorf("labels %s, want s1,s2,s3", got)
	}
}

func TestReservedLabelCharacters(t *testing.T) {
	for _, l := range []string{"a:b", "a(b", "a,b", "a;b", "a b", "a'b", "a[1]"} {
		_, err := New([]string{l, "x", "y"}, []string{"ACGT", "ACGA", "ACGC"})
		if !errors.Is(err, ErrInput) {
			t.Errorf("label %q: error %v is not an input error", l, err)
		}
	}
	if _, err := Read(strings.NewReader(">a:1\nACGT\n>b\nACGA\n>c\nACGC\n"), FormatFasta); !errors.Is(err, ErrInput) {
		t.Errorf("header a:1: error %v is not an input error", err)
	}
}

func TestReadUnequalLengths(t *testing.T) {
	_, err := Read(strings.NewReader(">a\nACGT\n>b\nACG\n>c\nACGT\n"), FormatFasta)
	if !errors.Is(err, ErrInput) {
		t.Errorf("error %v is not an input error", err)
	}
}

func TestReadUnknownFormat(t *testing.T) {
	if _, err := Read(strings.NewReader(testFasta), "phylip"); !errors.Is(err, ErrInput) {
		t.Errorf("error %v is not an input error", err)
	}
}

func TestLoadCompressed(t *testing.T) {
	dir := t.TempDir()

	gzPath := filepath.Join(dir, "aln.fa.gz")
	f, err := os.Create(gzPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(testFasta)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	xzPath := filepath.Join(dir, "aln.fa.xz")
	f, err = os.Create(xzPath)
	if err != nil {
		t.Fatal(err)
	}
	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := xw.Write([]byte(testFasta)); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	for _, path := range []string{gzPath, xzPath} {
		a, err := Load(path, FormatAuto)
		if err != nil {
			t.Fatalf("%s: %s", path, err)
		}
		if a.Len() != 4 {
			t.Errorf("%s: %d sequences", path, a.Len())
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.fa"), FormatAuto)
	if !errors.Is(err, ErrInput) {
		t.Errorf("error %v is not an input error", err)
	}
}
