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

package cohort_test

import (
	"io/ioutil"
	"strings"
	"testing"

	"github.com/grailbio/ampgeno/cohort"
	"github.com/grailbio/ampgeno/genotype"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/ampgeno/sample"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

const configData = `
loci:
  - name: L1
    regions: ["chr1:1-100"]
    targets:
      - name: T1
        regions: ["chr1:21-23"]
        translate: true
        reference: ATG
      - name: T2
        regions: ["chr1:41-43"]
        reference: CCC
`

func testConfig(t *testing.T) *locus.Config {
	cfg, err := locus.Parse(strings.NewReader(configData), nil)
	require.NoError(t, err)
	return cfg
}

func counters(alleles ...interface{}) *genotype.Counters {
	c := genotype.NewCounters()
	for i := 0; i < len(alleles); i += 2 {
		c.AddN(alleles[i].(string), alleles[i+1].(int), 0)
	}
	return c
}

// testSamples carries allele ATA in three samples, never above 5% or 4
// reads.
func testSamples() []cohort.SampleCounters {
	noise := func(name string) cohort.SampleCounters {
		return cohort.SampleCounters{Sample: name, Counters: map[string]*genotype.Counters{
			"T1": counters("ATG", 76, "ATA", 4),
		}}
	}
	return []cohort.SampleCounters{
		noise("S1"),
		noise("S2"),
		noise("S3"),
		{Sample: "S4", Counters: map[string]*genotype.Counters{"T1": counters("CTG", 10, "GTG", 2)}},
		{Sample: "S5", Counters: map[string]*genotype.Counters{"T1": counters("ATG", 3, "TTG", 12)}},
	}
}

func TestComputeStats(t *testing.T) {
	cfg := testConfig(t)
	stats := cohort.ComputeStats(cfg.Target("T1"), testSamples(), cfg.Thresholds.MinAltReads)
	expect.EQ(t, stats.Alleles, []cohort.AlleleStat{
		{Allele: "ATG", Samples: 4, Total: 231, MaxReads: 76, MaxFraction: 0.95, Retained: true},
		{Allele: "ATA", Samples: 3, Total: 12, MaxReads: 4, MaxFraction: 0.05, Retained: false},
		{Allele: "TTG", Samples: 1, Total: 12, MaxReads: 12, MaxFraction: 0.8, Retained: true},
		{Allele: "CTG", Samples: 1, Total: 10, MaxReads: 10, MaxFraction: 10.0 / 12, Retained: true},
		{Allele: "GTG", Samples: 1, Total: 2, MaxReads: 2, MaxFraction: 2.0 / 12, Retained: false},
	})
	expect.EQ(t, stats.Retained(), map[string]bool{"ATG": true, "TTG": true, "CTG": true})

	// An allele that is the only one in a sample is retained whatever its
	// count.
	fixed := []cohort.SampleCounters{
		{Sample: "A", Counters: map[string]*genotype.Counters{"T1": counters("GGG", 3)}},
		{Sample: "B", Counters: map[string]*genotype.Counters{"T1": counters("ATG", 30, "GGG", 3)}},
	}
	stats = cohort.ComputeStats(cfg.Target("T1"), fixed, cfg.Thresholds.MinAltReads)
	expect.EQ(t, stats.Retained(), map[string]bool{"ATG": true, "GGG": true})

	stats = cohort.ComputeStats(cfg.Target("T2"), testSamples(), cfg.Thresholds.MinAltReads)
	expect.EQ(t, len(stats.Alleles), 0)
}

func TestAggregate(t *testing.T) {
	cfg := testConfig(t)
	samples := testSamples()

	// Before the cohort filter, the noise samples are heterozygous.
	caller := genotype.NewCaller(cfg.Thresholds, locus.StrandBiasPolicy{})
	expect.EQ(t, caller.Call(samples[0].Counters["T1"], "ATG").Kind, genotype.Het)

	c := cohort.Aggregate(cfg, samples)
	expect.EQ(t, c.Samples, []string{"S1", "S2", "S3", "S4", "S5"})
	require.Len(t, c.Targets, 2)

	calls := c.Calls("T1")
	for j, s := range []string{"S1", "S2", "S3"} {
		expect.EQ(t, calls[s].Kind, genotype.WildType, "sample %s", s)
		expect.EQ(t, calls[s].Summary, "ATG:76")
		_, ok := c.Results[0][j].Counters.Get("ATA")
		expect.False(t, ok)
	}
	expect.EQ(t, calls["S4"].Kind, genotype.Mutant)
	expect.EQ(t, calls["S4"].Allele(), "CTG")
	expect.EQ(t, calls["S5"].Kind, genotype.Het)
	expect.EQ(t, calls["S5"].RefRelative(), "TTG/.")

	for s, call := range c.Calls("T2") {
		expect.EQ(t, call.Kind, genotype.Missing, "sample %s", s)
	}
	expect.True(t, c.Calls("T3") == nil)

	// The input counters are left alone.
	expect.EQ(t, samples[0].Counters["T1"].Summary(), "ATG:76,ATA:4")
}

func readFile(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	return string(data)
}

func TestWrite(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	c := cohort.Aggregate(testConfig(t), testSamples())
	assert.NoError(t, c.Write(ctx, tmpdir))

	expect.EQ(t, readFile(t, cohort.TargetAllelesPath(tmpdir, "T1")),
		"Sample\tATG\tTTG\tCTG\n"+
			"S1\t76\t0\t0\n"+
			"S2\t76\t0\t0\n"+
			"S3\t76\t0\t0\n"+
			"S4\t0\t0\t10\n"+
			"S5\t3\t12\t0\n")
	expect.EQ(t, readFile(t, cohort.TargetCallsPath(tmpdir, "T1")),
		"Sample\tCall\tAllele\tRefAllele\tSummary\tProfile\n"+
			"S1\tWT\tATG\t.\tATG:76\tstringent\n"+
			"S2\tWT\tATG\t.\tATG:76\tstringent\n"+
			"S3\tWT\tATG\t.\tATG:76\tstringent\n"+
			"S4\tMU\tCTG\tCTG\tCTG:10\tstringent\n"+
			"S5\tHET\tTTG,ATG\tTTG/.\tTTG:12,ATG:3\tstringent\n")
	expect.EQ(t, readFile(t, tmpdir+"/"+cohort.AllCallsFile),
		"Sample\tT1\tT2\n"+
			"S1\tATG\t-\n"+
			"S2\tATG\t-\n"+
			"S3\tATG\t-\n"+
			"S4\tCTG\t-\n"+
			"S5\tTTG,ATG\t-\n")
	expect.EQ(t, readFile(t, tmpdir+"/"+cohort.AllCallsRefFile),
		"Sample\tT1\tT2\n"+
			"S1\t.\t-\n"+
			"S2\t.\t-\n"+
			"S3\t.\t-\n"+
			"S4\tCTG\t-\n"+
			"S5\tTTG/.\t-\n")
	expect.EQ(t, readFile(t, tmpdir+"/"+cohort.AllCallsAminoFile),
		"Sample\tT1\n"+
			"S1\tM\n"+
			"S2\tM\n"+
			"S3\tM\n"+
			"S4\tL\n"+
			"S5\tL,M\n")
	stats := readFile(t, tmpdir+"/"+cohort.AlleleStatsFile)
	expect.True(t, strings.HasPrefix(stats,
		"Locus\tTarget\tAllele\tSamples\tTotal\tMaxReads\tMaxFraction\tRetained\n"+
			"L1\tT1\tATG\t4\t231\t76\t0.9500\ttrue\n"+
			"L1\tT1\tATA\t3\t12\t4\t0.0500\tfalse\n"), stats)
}

func TestLoadSamples(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	cfg := testConfig(t)
	tr := sample.TargetResult{Target: cfg.Target("T1"), Counters: counters("ATG", 5, "ATA", 2)}
	assert.NoError(t, sample.WriteAlleles(ctx, sample.AllelesPath(tmpdir, "S1"), []sample.TargetResult{tr}))

	var warned []string
	loaded := cohort.LoadSamples(ctx, tmpdir, []string{"S1", "S2"}, func(s string, err error) {
		expect.True(t, err != nil)
		warned = append(warned, s)
	})
	expect.EQ(t, warned, []string{"S2"})
	require.Len(t, loaded, 1)
	expect.EQ(t, loaded[0].Sample, "S1")
	expect.EQ(t, loaded[0].Counters["T1"].Summary(), "ATG:5,ATA:2")
}
