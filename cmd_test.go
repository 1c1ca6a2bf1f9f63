package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"fasttree/internal/config"
	"fasttree/internal/newick"
)

const testAlignment = `>human
ACGTACGTACGTACGTACGA
>chimp
ACGTACGTACGTACGTACGT
>gorilla
ACGTACGAACGTACCTACGT
>orangutan
ACCTACGAACGTTCCTACGT
>gibbon
ACCTTCGAACGTTCCTAGGT
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func writeAlignment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apes.fa")
	if err := os.WriteFile(path, []byte(testAlignment), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildWritesNewick(t *testing.T) {
	input := writeAlignment(t)
	for _, algo := range []string{"nj", "slowtree"} {
		out, err := run(t, "--algo", algo, "--workers", "2", input)
		if err != nil {
			t.Fatalf("%s: %s", algo, err)
		}
		g, err := newick.Read(strings.NewReader(out))
		if err != nil {
			t.Fatalf("%s: %s in %q", algo, err, out)
		}
		if len(g.Tips()) != 5 {
			t.Errorf("%s: %d tips", algo, len(g.Tips()))
		}
	}
}

func TestBuildToFile(t *testing.T) {
	input := writeAlignment(t)
	output := filepath.Join(t.TempDir(), "apes.nwk")
	out, err := run(t, "--algo", "slowtree", "--refresh", "1", "--top-hits", "2", input, output)
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("unexpected output %q", out)
	}
	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := newick.Read(f); err != nil {
		t.Error(err)
	}
}

func TestHeaderDescriptionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "described.fa")
	in := ">s1 Homo sapiens\nACGTACGTAC\n>s2 (chimp): x\nACGTACGTTC\n>s3 [gorilla]; y,z\nACGAACGTTC\n>s4\nTCGAACGTTC\n"
	if err := os.WriteFile(path, []byte(in), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, algo := range []string{"nj", "slowtree"} {
		out, err := run(t, "--algo", algo, path)
		if err != nil {
			t.Fatalf("%s: %s", algo, err)
		}
		g, err := newick.Read(strings.NewReader(out))
		if err != nil {
			t.Fatalf("%s: %s in %q", algo, err, out)
		}
		var names []string
		for _, tip := range g.Tips() {
			names = append(names, tip.Name())
		}
		slices.Sort(names)
		if strings.Join(names, ",") != "s1,s2,s3,s4" {
			t.Errorf("%s: tips %v", algo, names)
		}
	}
}

func TestAlgorithmRequired(t *testing.T) {
	if _, err := run(t, writeAlignment(t)); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("error %v is not ErrInvalid", err)
	}
}

func TestBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.fa")
	if err := os.WriteFile(path, []byte(">a\nACGT\n>b\nACG\n>c\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--algo", "nj", path); err == nil {
		t.Error("unequal lengths accepted")
	}
}

func TestCompare(t *testing.T) {
	out, err := run(t, "compare", writeAlignment(t))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "nj") || !strings.HasPrefix(lines[1], "slowtree") {
		t.Fatalf("output %q", out)
	}
	if !strings.Contains(lines[2], "splits=2") {
		t.Errorf("summary %q", lines[2])
	}
}

func TestDist(t *testing.T) {
	out, err := run(t, "dist", writeAlignment(t))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 || lines[0] != "5" {
		t.Fatalf("output %q", out)
	}
	fields := strings.Fields(lines[1])
	if len(fields) != 6 || fields[0] != "human" || fields[1] != "0.000000" {
		t.Errorf("first row %q", lines[1])
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || out != "fasttree dev\n" {
		t.Errorf("version %q, %v", out, err)
	}
}
