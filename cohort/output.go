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

package cohort

import (
	"context"
	"strconv"

	"github.com/grailbio/ampgeno/genotype"
	"github.com/grailbio/ampgeno/sample"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Output file names under the cohort directory.
const (
	AlleleStatsFile   = "AlleleStats.tsv"
	AllCallsFile      = "AllCalls.tsv"
	AllCallsRefFile   = "AllCallsRef.tsv"
	AllCallsAminoFile = "AllCallsAmino.tsv"
)

// TargetAllelesPath is the path of the allele-by-sample matrix of target.
func TargetAllelesPath(dir, target string) string {
	return file.Join(dir, target+".alleles.tsv")
}

// TargetCallsPath is the path of the call-by-sample table of target.
func TargetCallsPath(dir, target string) string {
	return file.Join(dir, target+".calls.tsv")
}

// CallRow is one row of a target's call table.
type CallRow struct {
	Sample    string `tsv:"Sample"`
	Call      string `tsv:"Call"`
	Allele    string `tsv:"Allele"`
	RefAllele string `tsv:"RefAllele"`
	Summary   string `tsv:"Summary"`
	Profile   string `tsv:"Profile"`
}

func writeTSV(ctx context.Context, path string, write func(w *tsv.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	if err = write(w); err != nil {
		return err
	}
	return w.Flush()
}

// Write writes all cohort tables into dir.
func (c *Cohort) Write(ctx context.Context, dir string) error {
	for i, t := range c.Targets {
		if err := c.writeTargetAlleles(ctx, TargetAllelesPath(dir, t.Name), i); err != nil {
			return err
		}
		if err := c.writeTargetCalls(ctx, TargetCallsPath(dir, t.Name), i); err != nil {
			return err
		}
	}
	if err := c.writeAlleleStats(ctx, file.Join(dir, AlleleStatsFile)); err != nil {
		return err
	}
	all := func(i int) bool { return true }
	if err := c.writeCallMatrix(ctx, file.Join(dir, AllCallsFile), all,
		func(tr sample.TargetResult) string { return tr.Call.Render() }); err != nil {
		return err
	}
	if err := c.writeCallMatrix(ctx, file.Join(dir, AllCallsRefFile), all,
		func(tr sample.TargetResult) string { return tr.Call.RenderRef() }); err != nil {
		return err
	}
	translated := func(i int) bool { return c.Targets[i].Translate }
	if err := c.writeCallMatrix(ctx, file.Join(dir, AllCallsAminoFile), translated,
		func(tr sample.TargetResult) string { return tr.Amino.Render() }); err != nil {
		return err
	}
	log.Printf("cohort: wrote %d targets x %d samples to %s", len(c.Targets), len(c.Samples), dir)
	return nil
}

// writeTargetAlleles writes the final read counts of the retained alleles of
// target i, one row per sample.
func (c *Cohort) writeTargetAlleles(ctx context.Context, path string, i int) error {
	var alleles []string
	for _, a := range c.Stats[i].Alleles {
		if a.Retained {
			alleles = append(alleles, a.Allele)
		}
	}
	return writeTSV(ctx, path, func(w *tsv.Writer) error {
		w.WriteString("Sample")
		for _, a := range alleles {
			w.WriteString(a)
		}
		if err := w.EndLine(); err != nil {
			return err
		}
		for j, s := range c.Samples {
			counters := c.Results[i][j].Counters
			w.WriteString(s)
			for _, a := range alleles {
				cnt, _ := counters.Get(a)
				w.WriteUint32(uint32(cnt.Count))
			}
			if err := w.EndLine(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cohort) writeTargetCalls(ctx context.Context, path string, i int) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewRowWriter(out.Writer(ctx))
	for j, s := range c.Samples {
		call := c.Results[i][j].Call
		row := CallRow{
			Sample:    s,
			Call:      call.Kind.String(),
			Allele:    call.Allele(),
			RefAllele: call.RefRelative(),
			Summary:   call.Summary,
			Profile:   sample.ProfileName(call),
		}
		if err = w.Write(&row); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (c *Cohort) writeAlleleStats(ctx context.Context, path string) error {
	return writeTSV(ctx, path, func(w *tsv.Writer) error {
		for _, col := range []string{"Locus", "Target", "Allele", "Samples", "Total", "MaxReads", "MaxFraction", "Retained"} {
			w.WriteString(col)
		}
		if err := w.EndLine(); err != nil {
			return err
		}
		for _, st := range c.Stats {
			for _, a := range st.Alleles {
				w.WriteString(st.Target.Locus)
				w.WriteString(st.Target.Name)
				w.WriteString(a.Allele)
				w.WriteUint32(uint32(a.Samples))
				w.WriteUint32(uint32(a.Total))
				w.WriteUint32(uint32(a.MaxReads))
				w.WriteString(strconv.FormatFloat(a.MaxFraction, 'f', 4, 64))
				w.WriteString(strconv.FormatBool(a.Retained))
				if err := w.EndLine(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeCallMatrix writes one row per sample and one column per target
// selected by include.
func (c *Cohort) writeCallMatrix(ctx context.Context, path string, include func(i int) bool, render func(sample.TargetResult) string) error {
	return writeTSV(ctx, path, func(w *tsv.Writer) error {
		w.WriteString("Sample")
		for i, t := range c.Targets {
			if include(i) {
				w.WriteString(t.Name)
			}
		}
		if err := w.EndLine(); err != nil {
			return err
		}
		for j, s := range c.Samples {
			w.WriteString(s)
			for i := range c.Targets {
				if include(i) {
					w.WriteString(render(c.Results[i][j]))
				}
			}
			if err := w.EndLine(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Calls returns the final call of every sample at target, keyed by sample.
func (c *Cohort) Calls(target string) map[string]genotype.Call {
	for i, t := range c.Targets {
		if t.Name != target {
			continue
		}
		calls := make(map[string]genotype.Call, len(c.Samples))
		for j, s := range c.Samples {
			calls[s] = c.Results[i][j].Call
		}
		return calls
	}
	return nil
}
