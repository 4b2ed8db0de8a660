// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sample

import (
	"context"
	"io"

	"github.com/grailbio/ampgeno/genotype"
	"github.com/grailbio/ampgeno/sequtil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

const (
	allelesSuffix    = ".alleles.tsv"
	callsSuffix      = ".calls.tsv"
	alignmentsSuffix = ".alignments.txt.gz"
)

// AllelesPath is the path of the allele table of sample under dir.
func AllelesPath(dir, sample string) string {
	return file.Join(dir, sample+allelesSuffix)
}

// CallsPath is the path of the call table of sample under dir.
func CallsPath(dir, sample string) string {
	return file.Join(dir, sample+callsSuffix)
}

// AlignmentsPath is the path of the alignment report of sample under dir.
func AlignmentsPath(dir, sample string) string {
	return file.Join(dir, sample+alignmentsSuffix)
}

// AlleleRow is one row of a sample's allele table.
type AlleleRow struct {
	Locus   string `tsv:"Locus"`
	Target  string `tsv:"Target"`
	Allele  string `tsv:"Allele"`
	Amino   string `tsv:"Amino"`
	Count   int    `tsv:"Count"`
	Reverse int    `tsv:"Reverse"`
}

// CallRow is one row of a sample's call table.
type CallRow struct {
	Locus     string `tsv:"Locus"`
	Target    string `tsv:"Target"`
	Call      string `tsv:"Call"`
	Allele    string `tsv:"Allele"`
	RefAllele string `tsv:"RefAllele"`
	Summary   string `tsv:"Summary"`
	// Profile is "stringent" or "lenient".
	Profile        string `tsv:"Profile"`
	AminoCall      string `tsv:"AminoCall"`
	AminoAllele    string `tsv:"AminoAllele"`
	AminoRefAllele string `tsv:"AminoRefAllele"`
}

// Profile names used in call tables.
const (
	StringentProfile = "stringent"
	LenientProfile   = "lenient"
)

// ProfileName returns the name of the profile a call was made with.
func ProfileName(c genotype.Call) string {
	if c.Lenient {
		return LenientProfile
	}
	return StringentProfile
}

func writeRows(ctx context.Context, path string, write func(w *tsv.RowWriter) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewRowWriter(out.Writer(ctx))
	if err = write(w); err != nil {
		return err
	}
	return w.Flush()
}

var alleleColumns = []string{"Locus", "Target", "Allele", "Amino", "Count", "Reverse"}

// WriteAlleles writes the allele table of a sample.  Alleles appear in
// first-seen order within each target.  The header is written even if no
// target has an allele.
func WriteAlleles(ctx context.Context, path string, targets []TargetResult) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	for _, col := range alleleColumns {
		w.WriteString(col)
	}
	if err = w.EndLine(); err != nil {
		return err
	}
	for _, tr := range targets {
		for _, cnt := range tr.Counters.Alleles() {
			var amino string
			if tr.Target.Translate {
				amino = sequtil.Translate(cnt.Allele)
			}
			w.WriteString(tr.Target.Locus)
			w.WriteString(tr.Target.Name)
			w.WriteString(cnt.Allele)
			w.WriteString(amino)
			w.WriteUint32(uint32(cnt.Count))
			w.WriteUint32(uint32(cnt.Reverse))
			if err = w.EndLine(); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// WriteCalls writes the call table of a sample.
func WriteCalls(ctx context.Context, path string, targets []TargetResult) error {
	return writeRows(ctx, path, func(w *tsv.RowWriter) error {
		for _, tr := range targets {
			row := CallRow{
				Locus:     tr.Target.Locus,
				Target:    tr.Target.Name,
				Call:      tr.Call.Kind.String(),
				Allele:    tr.Call.Allele(),
				RefAllele: tr.Call.RefRelative(),
				Summary:   tr.Call.Summary,
				Profile:   ProfileName(tr.Call),
			}
			if tr.Target.Translate {
				row.AminoCall = tr.Amino.Kind.String()
				row.AminoAllele = tr.Amino.Allele()
				row.AminoRefAllele = tr.Amino.RefRelative()
			}
			if err := w.Write(&row); err != nil {
				return err
			}
		}
		return nil
	})
}

func openRows(ctx context.Context, path string, read func(r *tsv.Reader) error) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		if errors.Is(errors.NotExist, err) {
			return errors.E(errors.NotExist, err, path)
		}
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r := tsv.NewReader(in.Reader(ctx))
	r.HasHeaderRow = true
	r.UseHeaderNames = true
	if err = read(r); err != nil {
		return errors.E(err, path)
	}
	return nil
}

// ReadAlleles reads an allele table back into counters keyed by target
// name.  Allele order and counts are preserved exactly.
func ReadAlleles(ctx context.Context, path string) (map[string]*genotype.Counters, error) {
	counters := make(map[string]*genotype.Counters)
	err := openRows(ctx, path, func(r *tsv.Reader) error {
		for {
			var row AlleleRow
			if err := r.Read(&row); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			c, ok := counters[row.Target]
			if !ok {
				c = genotype.NewCounters()
				counters[row.Target] = c
			}
			c.AddN(row.Allele, row.Count, row.Reverse)
		}
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// ReadCalls reads a call table.
func ReadCalls(ctx context.Context, path string) ([]CallRow, error) {
	var rows []CallRow
	err := openRows(ctx, path, func(r *tsv.Reader) error {
		for {
			var row CallRow
			if err := r.Read(&row); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			rows = append(rows, row)
		}
	})
	return rows, err
}
