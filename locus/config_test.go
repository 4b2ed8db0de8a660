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

package locus_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/ampgeno/encoding/fasta"
	"github.com/grailbio/ampgeno/interval"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

// chr1 positions 1-40.
const refData = ">chr1\nACGTTGCAAT GGCCTTAAGC ATGCATGCAA TTCCGGAATT\n>chr2\nAAAACCCCGGGGTTTT\n"

const configData = `
thresholds:
  minCallReads: 6
  minAltReads: 12
loci:
  - name: L1
    regions: ["chr1:1-40"]
    includeUnmapped: true
    strandBias: {enabled: true, minProportion: 0.1}
    anchors:
      - {pos: 11, motif: "GGCC[AT]T"}
      - {pos: 21, motif: "ATGCATG"}
    targets:
      - name: T1
        regions: ["chr1:21-23"]
        translate: true
      - name: T2
        regions: ["chr1:5-6", "chr1:9-9"]
        reverse: true
  - name: L2
    regions: ["chr2:1-16"]
    targets:
      - name: T3
        regions: ["chr2:5-8"]
        reference: "cccg"
`

func newRef(t *testing.T) fasta.Fasta {
	ref, err := fasta.New(strings.NewReader(strings.Replace(refData, " ", "", -1)))
	require.NoError(t, err)
	return ref
}

func TestParse(t *testing.T) {
	cfg, err := locus.Parse(strings.NewReader(configData), newRef(t))
	require.NoError(t, err)

	want := locus.DefaultThresholds
	want.MinCallReads = 6
	want.MinAltReads = 12
	expect.EQ(t, cfg.Thresholds, want)

	require.Len(t, cfg.Loci, 2)
	l1 := cfg.Loci[0]
	expect.EQ(t, l1.Name, "L1")
	expect.EQ(t, l1.Chrom(), "chr1")
	expect.True(t, l1.IncludeUnmapped)
	expect.False(t, l1.AnchorsOnly)
	expect.EQ(t, l1.StrandBias, locus.StrandBiasPolicy{Enabled: true, MinProportion: 0.1})
	expect.EQ(t, l1.TargetNames(), []string{"T1", "T2"})
	expect.EQ(t, len(l1.Anchors), 2)

	t1 := cfg.Target("T1")
	require.NotNil(t, t1)
	expect.EQ(t, t1.Locus, "L1")
	expect.EQ(t, t1.RefSeq, "ATG")
	expect.EQ(t, t1.RefAmino(), "M")

	// T2 is TG + A on the forward strand, reverse complemented.
	t2 := cfg.Target("T2")
	expect.EQ(t, t2.Len(), 3)
	expect.EQ(t, t2.RefSeq, "TCA")
	expect.EQ(t, t2.RefAmino(), "")

	t3 := cfg.Target("T3")
	expect.EQ(t, t3.RefSeq, "CCCG")

	var names []string
	for _, tgt := range cfg.Targets() {
		names = append(names, tgt.Name)
	}
	expect.EQ(t, names, []string{"T1", "T2", "T3"})
	expect.True(t, cfg.Target("T4") == nil)
	expect.True(t, cfg.Locus("L2") == cfg.Loci[1])
}

func TestFindAnchor(t *testing.T) {
	cfg, err := locus.Parse(strings.NewReader(configData), newRef(t))
	require.NoError(t, err)
	l1 := cfg.Loci[0]

	// The motif starts at offset 3 of the read, so the read starts at 11-3.
	start, ok := l1.FindAnchor("AATGGCCTTAAG")
	expect.True(t, ok)
	expect.EQ(t, start, 8)

	// Matching is case-insensitive.
	start, ok = l1.FindAnchor("ggccatt")
	expect.True(t, ok)
	expect.EQ(t, start, 11)

	// The first anchor wins even when a later one matches earlier in the read.
	start, ok = l1.FindAnchor("ATGCATGGGCCTT")
	expect.True(t, ok)
	expect.EQ(t, start, 11-7)

	start, ok = l1.FindAnchor("ATGCATGCAA")
	expect.True(t, ok)
	expect.EQ(t, start, 21)

	_, ok = l1.FindAnchor("TTTTTTTTTT")
	expect.False(t, ok)
}

func TestSpan(t *testing.T) {
	l := &locus.Locus{Regions: []interval.Region{
		{Chrom: "c", Start: 50, Stop: 60},
		{Chrom: "c", Start: 10, Stop: 20},
	}}
	expect.EQ(t, l.Span(), interval.Region{Chrom: "c", Start: 10, Stop: 60})
	expect.EQ(t, l.String(), "[c:50-60,c:10-20]")
}

func TestParseErrors(t *testing.T) {
	ref := newRef(t)
	tests := []struct {
		name string
		data string
	}{
		{"noLoci", "thresholds: {minCallReads: 3}\n"},
		{"unknownField", "loci:\n  - name: L\n    region: [\"chr1:1-4\"]\n"},
		{"badThreshold", "thresholds: {minAlleleProp: 1.5}\nloci: []\n"},
		{"badRegion", `
loci:
  - name: L
    regions: ["chr1"]
    targets: [{name: T, regions: ["chr1:1-3"]}]
`},
		{"badMotif", `
loci:
  - name: L
    regions: ["chr1:1-40"]
    anchors: [{pos: 3, motif: "AC[GT"}]
    targets: [{name: T, regions: ["chr1:1-3"]}]
`},
		{"unmappedWithoutAnchors", `
loci:
  - name: L
    regions: ["chr1:1-40"]
    includeUnmapped: true
    targets: [{name: T, regions: ["chr1:1-3"]}]
`},
		{"duplicateTarget", `
loci:
  - name: L
    regions: ["chr1:1-40"]
    targets: [{name: T, regions: ["chr1:1-3"]}]
  - name: M
    regions: ["chr2:1-16"]
    targets: [{name: T, regions: ["chr2:1-3"]}]
`},
		{"duplicateLocus", `
loci:
  - name: L
    regions: ["chr1:1-40"]
    targets: [{name: T, regions: ["chr1:1-3"]}]
  - name: L
    regions: ["chr2:1-16"]
    targets: [{name: U, regions: ["chr2:1-3"]}]
`},
		{"targetOtherChrom", `
loci:
  - name: L
    regions: ["chr1:1-40"]
    targets: [{name: T, regions: ["chr2:1-3"]}]
`},
		{"referenceOutOfRange", `
loci:
  - name: L
    regions: ["chr2:1-40"]
    targets: [{name: T, regions: ["chr2:10-30"]}]
`},
		{"referenceLength", `
loci:
  - name: L
    regions: ["chr2:1-40"]
    targets: [{name: T, regions: ["chr2:1-3"], reference: "AC"}]
`},
		{"strandBias", `
loci:
  - name: L
    regions: ["chr1:1-40"]
    strandBias: {enabled: true, minProportion: 0.7}
    targets: [{name: T, regions: ["chr1:1-3"]}]
`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := locus.Parse(strings.NewReader(test.data), ref)
			require.Error(t, err)
			expect.True(t, errors.Is(errors.Invalid, err), "error: %v", err)
		})
	}
}

func TestParseWithoutReference(t *testing.T) {
	_, err := locus.Parse(strings.NewReader(configData), nil)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestLoad(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	path := filepath.Join(tmpdir, "loci.yaml")
	assert.NoError(t, ioutil.WriteFile(path, []byte(configData), 0644))

	os.Setenv("GENOTYPER_MIN_ALLELE_PROP", "0.1")
	os.Setenv("GENOTYPER_MAX_READ_MISMATCHES", "4")
	defer os.Unsetenv("GENOTYPER_MIN_ALLELE_PROP")
	defer os.Unsetenv("GENOTYPER_MAX_READ_MISMATCHES")

	cfg, err := locus.Load(ctx, path, newRef(t))
	assert.NoError(t, err)
	expect.EQ(t, cfg.Thresholds.MinAlleleProp, 0.1)
	expect.EQ(t, cfg.Thresholds.MaxReadMismatches, 4)
	expect.EQ(t, cfg.Thresholds.MinCallReads, 6)

	os.Setenv("GENOTYPER_MIN_ALLELE_PROP", "2")
	_, err = locus.Load(ctx, path, newRef(t))
	expect.True(t, errors.Is(errors.Invalid, err))

	_, err = locus.Load(ctx, filepath.Join(tmpdir, "missing.yaml"), newRef(t))
	expect.True(t, err != nil)
}
