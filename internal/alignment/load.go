package alignment

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/fasta"
	"github.com/evolbioinfo/goalign/io/nexus"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// Input formats understood by Load.
const (
	FormatAuto  = "auto"
	FormatFasta = "fasta"
	FormatNexus = "nexus"
)

// Load reads an alignment from path ("-" for standard input). Files ending in
// .gz or .xz are decompressed. With FormatAuto the format is guessed from the
// first non-blank character: '#' for NEXUS, FASTA otherwise.
func Load(path, format string) (*Alignment, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, &InputError{Reason: "cannot open alignment", Err: err}
		}
		defer f.Close()
	}
	r, err := decompress(f, path)
	if err != nil {
		return nil, &InputError{Reason: "cannot decompress " + path, Err: err}
	}
	log.Infof("loading alignment %s", path)
	return Read(r, format)
}

// Read parses an alignment in the given format from r.
func Read(r io.Reader, format string) (*Alignment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &InputError{Reason: "cannot read alignment", Err: err}
	}
	if format == FormatAuto || format == "" {
		format = sniff(data)
	}
	var aln align.Alignment
	switch format {
	case FormatFasta:
		// goalign renames repeated names, so they are checked on the raw headers
		if err := uniqueHeaders(data); err != nil {
			return nil, err
		}
		aln, err = fasta.NewParser(bytes.NewReader(data)).Parse()
	case FormatNexus:
		aln, err = nexus.NewParser(bytes.NewReader(data)).Parse()
	default:
		return nil, inputErrorf("unknown alignment format %q", format)
	}
	if err != nil {
		return nil, &InputError{Reason: "cannot parse " + format + " alignment", Err: err}
	}
	if aln == nil {
		return nil, inputErrorf("empty alignment")
	}
	if format == FormatNexus {
		if err := notRenamed(aln); err != nil {
			return nil, err
		}
	}
	a, err := FromGoalign(aln)
	if err != nil {
		return nil, err
	}
	log.Infof("read %d %s sequences of length %d", a.Len(), a.Alphabet(), a.Length())
	log.Debugf("profile columns %s", a.Alphabet().Symbols())
	return a, nil
}

func decompress(r io.Reader, path string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(r)
		return zr, errors.Wrap(err, "gzip")
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(r)
		return xr, errors.Wrap(err, "xz")
	}
	return r, nil
}

func sniff(data []byte) string {
	head := bytes.TrimSpace(data[:min(len(data), 512)])
	if len(head) > 0 && head[0] == '#' {
		return FormatNexus
	}
	return FormatFasta
}

// uniqueHeaders fails on two FASTA records with the same label.
func uniqueHeaders(data []byte) error {
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '>' {
			continue
		}
		l := Label(string(line[1:]))
		if l == "" {
			continue
		}
		if seen[l] {
			return inputErrorf("duplicate label %q", l)
		}
		seen[l] = true
	}
	return errors.Wrap(sc.Err(), "scanning fasta headers")
}

var renamed = regexp.MustCompile(`^(.+)_[0-9]{4}$`)

// notRenamed fails when goalign renamed a repeated name to name_NNNN.
func notRenamed(aln align.Alignment) error {
	names := make(map[string]bool)
	for _, s := range aln.Sequences() {
		names[s.Name()] = true
	}
	for _, s := range aln.Sequences() {
		if m := renamed.FindStringSubmatch(s.Name()); m != nil && names[m[1]] {
			return inputErrorf("duplicate label %q", m[1])
		}
	}
	return nil
}
