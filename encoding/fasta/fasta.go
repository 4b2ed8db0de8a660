// Package fasta contains code for loading the reference genome used to
// resolve target reference alleles and alignment-report windows.  FASTA files
// consist of a number of named sequences that may be interrupted by newlines.
// For example:
//
// >Pf3D7_07_v3
// ACGTAC
// GAGGAC
// GCG
// >Pf3D7_13_v3
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appear after a space are ignored.
// Bases are upper-cased on load so that allele strings compare equal
// regardless of soft-masking in the reference.
package fasta

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/grailbio/ampgeno/interval"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.  Implementations are read-only after construction and safe for
// concurrent use.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end).
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

type fasta struct {
	seqs     map[string]string
	seqNames []string
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader) (Fasta, error) {
	f := &fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var seqName string
	var seq bytes.Buffer
	flush := func() error {
		if seqName == "" {
			if seq.Len() != 0 {
				return errors.Errorf("malformed FASTA file: sequence data before the first header")
			}
			return nil
		}
		if _, ok := f.seqs[seqName]; ok {
			return errors.Errorf("malformed FASTA file: duplicate sequence %s", seqName)
		}
		f.seqs[seqName] = string(bytes.ToUpper(seq.Bytes()))
		f.seqNames = append(f.seqNames, seqName)
		seq.Reset()
		return nil
	}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if err := flush(); err != nil {
				return nil, err
			}
			fields := bytes.Fields(line[1:])
			if len(fields) == 0 {
				return nil, errors.Errorf("malformed FASTA file: empty sequence name")
			}
			seqName = string(fields[0])
		} else {
			seq.Write(bytes.TrimRight(line, "\r"))
		}
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(f.seqNames) == 0 {
		return nil, errors.Errorf("empty FASTA file")
	}
	return f, nil
}

// Load reads the FASTA file at path, which may be gzip/bzip2/zstd compressed
// and may live on any filesystem registered with grailbio/base/file.
func Load(ctx context.Context, path string) (fa Fasta, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader, _ := compress.NewReader(infile.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if fa, err = New(reader); err != nil {
		err = errors.Wrapf(err, "fasta.Load %s", path)
	}
	return
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seq string) (uint64, error) {
	s, ok := f.seqs[seq]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seq)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}

// GetRegion returns the bases covered by the 1-based closed region r.
func GetRegion(f Fasta, r interval.Region) (string, error) {
	if r.Start < 1 || r.Stop < r.Start {
		return "", errors.Errorf("invalid region %v", r)
	}
	return f.Get(r.Chrom, uint64(r.Start0()), uint64(r.End0()))
}

// GetClipped is like GetRegion, but clips r to the sequence bounds instead of
// failing.  It returns "" if nothing of r lies inside the sequence.
func GetClipped(f Fasta, r interval.Region) string {
	n, err := f.Len(r.Chrom)
	if err != nil {
		return ""
	}
	start := r.Start
	if start < 1 {
		start = 1
	}
	stop := r.Stop
	if uint64(stop) > n {
		stop = int(n)
	}
	if stop < start {
		return ""
	}
	s, _ := f.Get(r.Chrom, uint64(start-1), uint64(stop))
	return s
}
