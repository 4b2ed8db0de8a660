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

// Package sample runs the per-sample phase of genotyping: reads are placed,
// aligned per locus, genotyped per target and called.  The results are
// persisted as tables that the cohort phase reads back.
package sample

import (
	"context"
	"io"

	"github.com/grailbio/ampgeno/consensus"
	"github.com/grailbio/ampgeno/encoding/bamsource"
	"github.com/grailbio/ampgeno/encoding/fasta"
	"github.com/grailbio/ampgeno/genotype"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/ampgeno/placement"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// TargetResult is the outcome for one target of one sample.
type TargetResult struct {
	Target *locus.Target
	// Counters are cleaned up.
	Counters *genotype.Counters
	Call     genotype.Call
	// Amino is set only for translated targets.
	Amino genotype.Call
	// NoCoverage and LowQuality count reads with no genotype.
	NoCoverage int
	LowQuality int
}

// NewTargetResult calls counters, which must already be cleaned up.
func NewTargetResult(t *locus.Target, counters *genotype.Counters, caller *genotype.Caller) TargetResult {
	tr := TargetResult{
		Target:   t,
		Counters: counters,
		Call:     caller.Call(counters, t.RefSeq),
	}
	if t.Translate {
		tr.Amino = genotype.AminoCall(tr.Call, counters)
	}
	return tr
}

// Result is the outcome for one sample.
type Result struct {
	Sample string
	// Targets are in configuration order.
	Targets   []TargetResult
	Placement placement.Stats
	// Misaligned counts reads excluded by the consensus check, over all loci.
	Misaligned int
}

// Analyzer runs the per-sample phase.
type Analyzer struct {
	Config *locus.Config
	// Ref is used for the reference row of alignment reports.  It may be nil.
	Ref fasta.Fasta
	// Dir receives the per-sample tables.
	Dir string
	// WriteAlignments enables the gzipped alignment report.
	WriteAlignments bool
}

// Analyze genotypes one sample.  If report is not nil, the alignment of each
// locus is written to it.
func (a *Analyzer) Analyze(sample string, src bamsource.Source, report io.Writer) (*Result, error) {
	th := a.Config.Thresholds
	coll, err := placement.Collect(src, a.Config.Loci, th.MaxIndelSize)
	if err != nil {
		return nil, err
	}
	res := &Result{Sample: sample, Placement: coll.Stats()}
	for _, l := range a.Config.Loci {
		aln := consensus.New(coll.Reads(l), th.MaxReadMismatches)
		res.Misaligned += aln.NumMisaligned()
		if report != nil {
			var refSeq string
			if a.Ref != nil {
				refSeq = aln.Reference(a.Ref, l.Chrom())
			}
			if err := aln.WriteReport(report, l.Name, l.Chrom(), refSeq); err != nil {
				return nil, err
			}
		}
		aligned := aln.Aligned()
		caller := genotype.NewCaller(th, l.StrandBias)
		for _, t := range l.Targets {
			tally := genotype.TallyReads(aligned, t, th.MinBaseQual)
			tally.Counters.Cleanup()
			tr := NewTargetResult(t, tally.Counters, caller)
			tr.NoCoverage = tally.NoCoverage
			tr.LowQuality = tally.LowQuality
			res.Targets = append(res.Targets, tr)
		}
	}
	return res, nil
}

// Run analyzes one sample and writes its tables, and optionally its
// alignment report, under a.Dir.  If Run fails, the tables of sample are
// removed so that a later merge cannot pick up partial or stale results.
func (a *Analyzer) Run(ctx context.Context, sample string, src bamsource.Source) (res *Result, err error) {
	log.Printf("sample %s: start", sample)
	defer func() {
		if r := recover(); r != nil {
			a.removeTables(ctx, sample)
			panic(r)
		}
		if err != nil {
			a.removeTables(ctx, sample)
		}
	}()
	var report io.Writer
	if a.WriteAlignments {
		var out file.File
		if out, err = file.Create(ctx, AlignmentsPath(a.Dir, sample)); err != nil {
			return nil, err
		}
		defer file.CloseAndReport(ctx, out, &err)
		gz := gzip.NewWriter(out.Writer(ctx))
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		report = gz
	}
	if res, err = a.Analyze(sample, src, report); err != nil {
		return nil, errors.E(err, "sample", sample)
	}
	// The allele table is what the cohort phase reads, so it is written last.
	if err = WriteCalls(ctx, CallsPath(a.Dir, sample), res.Targets); err != nil {
		return nil, err
	}
	if err = WriteAlleles(ctx, AllelesPath(a.Dir, sample), res.Targets); err != nil {
		return nil, err
	}
	st := res.Placement
	log.Printf("sample %s: done, %d records, %d mapped, %d anchored, %d dropped, %d misaligned",
		sample, st.Records, st.Mapped, st.Anchored, st.Dropped, res.Misaligned)
	return res, nil
}

// removeTables deletes whatever tables of sample a failed or earlier run
// left in a.Dir.
func (a *Analyzer) removeTables(ctx context.Context, sample string) {
	for _, path := range []string{AllelesPath(a.Dir, sample), CallsPath(a.Dir, sample)} {
		if err := file.Remove(ctx, path); err != nil && !errors.Is(errors.NotExist, err) {
			log.Error.Printf("sample %s: remove %s: %v", sample, path, err)
		}
	}
}
