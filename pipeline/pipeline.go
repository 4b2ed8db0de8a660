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

package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/grailbio/ampgeno/cohort"
	"github.com/grailbio/ampgeno/encoding/bamsource"
	"github.com/grailbio/ampgeno/encoding/fasta"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/ampgeno/sample"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Layout of the output directory.
const (
	SamplesDir = "samples"
	CohortDir  = "cohort"
	LedgerFile = "warnings.tsv"
)

// Opener opens the alignment source of a manifest entry.
type Opener func(e Entry) (bamsource.Source, error)

// OpenBAM opens e.BAM with its index.
func OpenBAM(e Entry) (bamsource.Source, error) {
	return bamsource.NewBAMSource(e.BAM, e.Index), nil
}

// Opts controls a Pipeline.
type Opts struct {
	// Parallelism is the maximum number of samples genotyped at once.  If
	// <= 0, runtime.NumCPU() is used.
	Parallelism int
	// WriteAlignments enables the per-sample alignment reports.
	WriteAlignments bool
	// RunID tags ledger rows.  A random UUID is used if empty.
	RunID string
	// Open opens sample sources.  Defaults to OpenBAM.
	Open Opener
}

// Pipeline genotypes a cohort of samples into an output directory.
type Pipeline struct {
	Config *locus.Config
	Ref    fasta.Fasta
	Out    string
	Opts   Opts
	Ledger *Ledger
}

// New creates a pipeline writing under out.  The ledger lives at
// out/warnings.tsv, which must be on the local filesystem.
func New(cfg *locus.Config, ref fasta.Fasta, out string, opts Opts) *Pipeline {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Open == nil {
		opts.Open = OpenBAM
	}
	return &Pipeline{
		Config: cfg,
		Ref:    ref,
		Out:    out,
		Opts:   opts,
		Ledger: NewLedger(file.Join(out, LedgerFile), opts.RunID),
	}
}

// SamplesPath is the directory of the per-sample tables.
func (p *Pipeline) SamplesPath() string { return file.Join(p.Out, SamplesDir) }

// CohortPath is the directory of the cohort tables.
func (p *Pipeline) CohortPath() string { return file.Join(p.Out, CohortDir) }

// genotypeOne runs the per-sample phase on one entry.  A panic is turned
// into an error.
func (p *Pipeline) genotypeOne(ctx context.Context, a *sample.Analyzer, e Entry) (res *sample.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	src, err := p.Opts.Open(e)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return a.Run(ctx, e.Sample, src)
}

// GenotypeSamples runs the per-sample phase over entries with bounded
// parallelism.  A sample that fails is recorded in the ledger and does not
// stop the others.  It returns the names of the samples that succeeded, in
// manifest order, once every sample has finished.
func (p *Pipeline) GenotypeSamples(ctx context.Context, entries []Entry) ([]string, error) {
	a := &sample.Analyzer{
		Config:          p.Config,
		Ref:             p.Ref,
		Dir:             p.SamplesPath(),
		WriteAlignments: p.Opts.WriteAlignments,
	}
	var (
		ok     = make([]bool, len(entries))
		nDone  int32
		nTotal = len(entries)
	)
	log.Printf("genotyping %d samples, parallelism %d, run %s", nTotal, p.Opts.Parallelism, p.Opts.RunID)
	err := traverse.Limit(p.Opts.Parallelism).Each(nTotal, func(i int) error {
		e := entries[i]
		if _, err := p.genotypeOne(ctx, a, e); err != nil {
			p.Ledger.record(e.Sample, StageGenotype, err)
		} else {
			ok[i] = true
		}
		log.Debug.Printf("genotyped %d/%d samples", atomic.AddInt32(&nDone, 1), nTotal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	var samples []string
	for i, e := range entries {
		if ok[i] {
			samples = append(samples, e.Sample)
		}
	}
	log.Printf("genotyped %d of %d samples", len(samples), nTotal)
	return samples, nil
}

// MergeResults runs the cohort phase over the per-sample tables of samples
// and writes the cohort tables.  Samples whose tables cannot be read are
// recorded in the ledger and left out.
func (p *Pipeline) MergeResults(ctx context.Context, samples []string) (*cohort.Cohort, error) {
	loaded := cohort.LoadSamples(ctx, p.SamplesPath(), samples, func(s string, err error) {
		p.Ledger.record(s, StageMerge, err)
	})
	if len(loaded) == 0 {
		return nil, errors.E(errors.NotExist, "no sample results to merge in", p.SamplesPath())
	}
	c := cohort.Aggregate(p.Config, loaded)
	if err := c.Write(ctx, p.CohortPath()); err != nil {
		return nil, err
	}
	return c, nil
}

// Run genotypes every sample, waits for all of them, then merges the
// successful ones.
func (p *Pipeline) Run(ctx context.Context, entries []Entry) (*cohort.Cohort, error) {
	samples, err := p.GenotypeSamples(ctx, entries)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.E("every sample failed, see", p.Ledger.Path())
	}
	c, err := p.MergeResults(ctx, samples)
	if err != nil {
		return nil, err
	}
	if n := p.Ledger.Len(); n > 0 {
		log.Error.Printf("%d failures recorded in %s", n, p.Ledger.Path())
	}
	return c, nil
}
