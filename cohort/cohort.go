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

// Package cohort runs the second, cohort-wide phase of genotyping.  It
// reads every sample's allele table, computes per-allele population
// statistics, drops alleles that never dominate any sample, and calls every
// sample again on the surviving alleles.
package cohort

import (
	"context"
	"sort"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/ampgeno/genotype"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/ampgeno/sample"
	"github.com/grailbio/base/log"
)

// SampleCounters are the per-target allele counters of one sample, as
// persisted by the per-sample phase.
type SampleCounters struct {
	Sample string
	// Counters is keyed by target name.  A target with no alleles may be
	// absent.
	Counters map[string]*genotype.Counters
}

// LoadSamples reads the allele tables of samples from dir.  A sample whose
// table cannot be read is reported to warn and left out.
func LoadSamples(ctx context.Context, dir string, samples []string, warn func(sample string, err error)) []SampleCounters {
	var loaded []SampleCounters
	for _, s := range samples {
		counters, err := sample.ReadAlleles(ctx, sample.AllelesPath(dir, s))
		if err != nil {
			log.Error.Printf("cohort: skipping sample %s: %v", s, err)
			if warn != nil {
				warn(s, err)
			}
			continue
		}
		loaded = append(loaded, SampleCounters{Sample: s, Counters: counters})
	}
	return loaded
}

// AlleleStat summarizes one allele of one target over the cohort.
type AlleleStat struct {
	Allele string
	// Samples is the number of samples carrying the allele.
	Samples int
	// Total is the number of reads over all samples.
	Total int
	// MaxReads is the largest read count in a single sample.
	MaxReads int
	// MaxFraction is the largest fraction of a sample's reads at the target.
	MaxFraction float64
	// Retained is set if the allele passes the cohort filter.
	Retained bool
}

// TargetStats are the cohort statistics of one target.
type TargetStats struct {
	Target *locus.Target
	// Alleles are ordered by descending total read count.  Ties keep the
	// order in which alleles were first seen across samples.
	Alleles []AlleleStat
}

// Retained returns the set of alleles that pass the cohort filter.
func (s *TargetStats) Retained() map[string]bool {
	keep := make(map[string]bool)
	for _, a := range s.Alleles {
		if a.Retained {
			keep[a.Allele] = true
		}
	}
	return keep
}

// ComputeStats computes the statistics of target t.  An allele is retained
// if some sample carries it exclusively, or with at least minAltReads reads.
func ComputeStats(t *locus.Target, samples []SampleCounters, minAltReads int) *TargetStats {
	var (
		stats []AlleleStat
		index = make(map[string]int)
	)
	for _, sc := range samples {
		c, ok := sc.Counters[t.Name]
		if !ok {
			continue
		}
		total := c.Total()
		for _, cnt := range c.Alleles() {
			if cnt.Count == 0 {
				continue
			}
			i, ok := index[cnt.Allele]
			if !ok {
				i = len(stats)
				index[cnt.Allele] = i
				stats = append(stats, AlleleStat{Allele: cnt.Allele})
			}
			st := &stats[i]
			st.Samples++
			st.Total += cnt.Count
			if cnt.Count > st.MaxReads {
				st.MaxReads = cnt.Count
			}
			frac := float64(cnt.Count) / float64(total)
			if frac > st.MaxFraction {
				st.MaxFraction = frac
			}
			if cnt.Count == total || cnt.Count >= minAltReads {
				st.Retained = true
			}
		}
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Total > stats[j].Total })
	return &TargetStats{Target: t, Alleles: stats}
}

// Cohort holds the final calls of every sample at every target.
type Cohort struct {
	Samples []string
	Targets []*locus.Target
	// Stats is parallel to Targets.
	Stats []*TargetStats
	// Results[i][j] is the result of Targets[i] in Samples[j].
	Results [][]sample.TargetResult
}

// Aggregate filters every sample's counters down to the alleles retained
// cohort-wide and calls them again.  Targets are processed in parallel.
func Aggregate(cfg *locus.Config, samples []SampleCounters) *Cohort {
	c := &Cohort{Targets: cfg.Targets()}
	for _, sc := range samples {
		c.Samples = append(c.Samples, sc.Sample)
	}
	c.Stats = make([]*TargetStats, len(c.Targets))
	c.Results = make([][]sample.TargetResult, len(c.Targets))
	if len(c.Targets) == 0 {
		return c
	}
	parallel.Range(0, len(c.Targets), 0, func(low, high int) {
		for i := low; i < high; i++ {
			t := c.Targets[i]
			stats := ComputeStats(t, samples, cfg.Thresholds.MinAltReads)
			keep := stats.Retained()
			caller := genotype.NewCaller(cfg.Thresholds, cfg.Locus(t.Locus).StrandBias)
			results := make([]sample.TargetResult, len(samples))
			for j, sc := range samples {
				counters := genotype.NewCounters()
				if cs, ok := sc.Counters[t.Name]; ok {
					counters = cs.Filter(func(cnt genotype.Counter) bool { return keep[cnt.Allele] })
				}
				counters.Cleanup()
				results[j] = sample.NewTargetResult(t, counters, caller)
			}
			c.Stats[i] = stats
			c.Results[i] = results
		}
	})
	return c
}
