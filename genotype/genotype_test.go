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

package genotype_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/grailbio/ampgeno/genotype"
	"github.com/grailbio/ampgeno/interval"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/ampgeno/placement"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func newRead(start int, seq string, reverse bool) placement.Read {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	return placement.Read{ID: "r", Seq: seq, Qual: qual, Start: start, Reverse: reverse, Status: placement.Mapped}
}

func newTarget(reverse bool, regions ...interval.Region) *locus.Target {
	return &locus.Target{Name: "T", Locus: "L", Regions: regions, Reverse: reverse}
}

func region(start, stop int) interval.Region {
	return interval.Region{Chrom: "chr1", Start: start, Stop: stop}
}

func TestExtract(t *testing.T) {
	lowQual := newRead(3, "GGATGCC", false)
	lowQual.Qual[3] = 10
	// Quality outside the target does not matter.
	lowQualOutside := newRead(3, "GGATGCC", false)
	lowQualOutside.Qual[0] = 2

	tests := []struct {
		name   string
		read   placement.Read
		target *locus.Target
		want   genotype.Genotype
	}{
		{"simple", newRead(3, "GGATGCC", false), newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.Valid, Allele: "ATG"}},
		{"exactCover", newRead(5, "ATG", false), newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.Valid, Allele: "ATG"}},
		{"reverse", newRead(3, "GGATGCC", false), newTarget(true, region(5, 7)),
			genotype.Genotype{Status: genotype.Valid, Allele: "CAT"}},
		{"split", newRead(3, "GGATGCCA", false), newTarget(false, region(5, 6), region(9, 9)),
			genotype.Genotype{Status: genotype.Valid, Allele: "ATC"}},
		{"deletion", newRead(3, "GGA-GCC", false), newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.Valid, Allele: "A-G"}},
		{"startsInside", newRead(6, "TGCC", false), newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.NoCoverage}},
		{"endsInside", newRead(1, "AAAAAA", false), newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.NoCoverage}},
		{"secondRegionUncovered", newRead(3, "GGATGC", false), newTarget(false, region(5, 6), region(9, 9)),
			genotype.Genotype{Status: genotype.NoCoverage}},
		{"ambiguous", newRead(3, "GGANGCC", false), newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.NoCoverage}},
		{"lowQuality", lowQual, newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.LowQuality}},
		{"lowQualityOutside", lowQualOutside, newTarget(false, region(5, 7)),
			genotype.Genotype{Status: genotype.Valid, Allele: "ATG"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			expect.EQ(t, genotype.Extract(&test.read, test.target, 20), test.want)
		})
	}
}

func TestTallyReads(t *testing.T) {
	lowQual := newRead(3, "GGATGCC", false)
	lowQual.Qual[2] = 5
	reads := []placement.Read{
		newRead(3, "GGATGCC", false),
		newRead(4, "GATACC", true),
		newRead(3, "GGATGCC", true),
		newRead(6, "TGCC", false),
		lowQual,
	}
	tally := genotype.TallyReads(reads, newTarget(false, region(5, 7)), 20)
	expect.EQ(t, tally.NoCoverage, 1)
	expect.EQ(t, tally.LowQuality, 1)
	expect.EQ(t, tally.Counters.Alleles(), []genotype.Counter{
		{Allele: "ATG", Count: 2, Reverse: 1},
		{Allele: "ATA", Count: 1, Reverse: 1},
	})
}

func TestCounters(t *testing.T) {
	c := genotype.NewCounters()
	for _, a := range []string{"ATA", "ATG", "ATG", "ANG", "ATG", "CTG", "ATA", "ANG"} {
		c.Add(a, false)
	}
	c.AddN("GGG", 3, 2)
	expect.EQ(t, c.Len(), 5)
	expect.EQ(t, c.Total(), 11)
	expect.EQ(t, c.Summary(), "ATG:3,GGG:3,ATA:2,ANG:2,CTG:1")

	cnt, ok := c.Get("GGG")
	expect.True(t, ok)
	expect.EQ(t, cnt.Forward(), 1)
	_, ok = c.Get("TTT")
	expect.False(t, ok)

	c.Cleanup()
	expect.EQ(t, c.Summary(), "ATG:3,GGG:3,ATA:2")

	f := c.Filter(func(cnt genotype.Counter) bool { return cnt.Allele != "GGG" })
	expect.EQ(t, f.Summary(), "ATG:3,ATA:2")
	expect.EQ(t, c.Len(), 3)
}

func TestCleanupIdempotent(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	alphabet := "ACGN"
	for iter := 0; iter < 200; iter++ {
		c := genotype.NewCounters()
		for i := rnd.Intn(30); i > 0; i-- {
			a := []byte{alphabet[rnd.Intn(4)], alphabet[rnd.Intn(4)]}
			c.AddN(string(a), 1+rnd.Intn(3), 0)
		}
		c.Cleanup()
		once := c.Alleles()
		c.Cleanup()
		assert.Equal(t, once, c.Alleles())
		for _, cnt := range once {
			expect.True(t, cnt.Count >= genotype.MinCleanupReads)
		}
	}
}

func TestGenotyperMinReads(t *testing.T) {
	g := genotype.NewGenotyper(0.05)
	for _, test := range []struct{ total, want int }{
		{0, 2}, {1, 2}, {20, 2}, {40, 2}, {41, 3}, {59, 3}, {60, 3}, {61, 4}, {100, 5}, {1000, 50},
	} {
		expect.EQ(t, g.MinReads(test.total), test.want, "total %d", test.total)
	}
	// Exactly the minimum proportion is accepted.
	expect.True(t, g.Valid(5, 100))
	expect.False(t, g.Valid(4, 100))
	expect.True(t, g.Valid(50, 1000))

	g = genotype.NewGenotyper(0.1)
	expect.EQ(t, g.MinReads(20), 2)
	expect.EQ(t, g.MinReads(21), 3)
	expect.EQ(t, g.MinReads(30), 3)
}

func TestGenotyperMonotone(t *testing.T) {
	for _, p := range []float64{0.01, 0.03, 0.05, 0.1, 0.25, 0.5} {
		g := genotype.NewGenotyper(p)
		for total := 0; total <= 500; total++ {
			valid := false
			for count := 0; count <= total; count++ {
				if valid {
					expect.True(t, g.Valid(count, total), "p=%v total=%d count=%d", p, total, count)
				}
				valid = g.Valid(count, total)
			}
		}
	}
}

func newCounters(alleles ...interface{}) *genotype.Counters {
	c := genotype.NewCounters()
	for i := 0; i < len(alleles); i += 2 {
		c.AddN(alleles[i].(string), alleles[i+1].(int), alleles[i+1].(int)/2)
	}
	return c
}

func TestCall(t *testing.T) {
	caller := genotype.NewCaller(locus.DefaultThresholds, locus.StrandBiasPolicy{})
	tests := []struct {
		name        string
		counters    *genotype.Counters
		kind        genotype.CallKind
		lenient     bool
		allele      string
		refRelative string
		render      string
		renderRef   string
	}{
		{"wildTypeWithSingleton", newCounters("ATG", 11, "ATA", 1),
			genotype.WildType, false, "ATG", ".", "ATG", "."},
		{"het", newCounters("ATG", 10, "ATA", 10),
			genotype.Het, false, "ATG,ATA", "./ATA", "ATG,ATA", "./ATA"},
		{"hetRefSecond", newCounters("ATA", 12, "ATG", 8),
			genotype.Het, false, "ATA,ATG", "ATA/.", "ATA,ATG", "ATA/."},
		{"mutant", newCounters("ATA", 30, "ATG", 1),
			genotype.Mutant, false, "ATA", "ATA", "ATA", "ATA"},
		{"lenientWildType", newCounters("ATG", 3),
			genotype.WildType, true, "ATG", ".", "[atg]", "[.]"},
		{"lenientMutant", newCounters("ATA", 3),
			genotype.Mutant, true, "ATA", "ATA", "[ata]", "[ata]"},
		{"lenientHet", newCounters("ATA", 2, "ATG", 2),
			genotype.Het, true, "ATA,ATG", "ATA/.", "[ata,atg]", "[ata/.]"},
		{"empty", genotype.NewCounters(),
			genotype.Missing, false, "", "", "-", "-"},
		{"tooFew", newCounters("ATG", 1),
			genotype.Missing, false, "", "", "-", "-"},
		// 100 reads: the minimum is 5, so only ATG passes.
		{"proportion", newCounters("ATG", 92, "ATA", 4, "ATC", 4),
			genotype.WildType, false, "ATG", ".", "ATG", "."},
		{"proportionThird", newCounters("ATG", 90, "ATA", 5, "ATC", 5),
			genotype.Het, false, "ATG,ATA,ATC", "./ATA/ATC", "ATG,ATA,ATC", "./ATA/ATC"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			call := caller.Call(test.counters, "ATG")
			expect.EQ(t, call.Kind, test.kind)
			expect.EQ(t, call.Lenient, test.lenient)
			expect.EQ(t, call.Level, genotype.Nucleotide)
			expect.EQ(t, call.Allele(), test.allele)
			expect.EQ(t, call.RefRelative(), test.refRelative)
			expect.EQ(t, call.Render(), test.render)
			expect.EQ(t, call.RenderRef(), test.renderRef)
			expect.EQ(t, call.Summary, test.counters.Summary())
		})
	}
}

func TestCallKindCoverage(t *testing.T) {
	caller := genotype.NewCaller(locus.DefaultThresholds, locus.StrandBiasPolicy{})
	rnd := rand.New(rand.NewSource(2))
	for iter := 0; iter < 2000; iter++ {
		c := genotype.NewCounters()
		for i := rnd.Intn(5); i > 0; i-- {
			c.AddN(fmt.Sprintf("A%d", rnd.Intn(4)), 1+rnd.Intn(40), 0)
		}
		call := caller.Call(c, "A0")
		switch call.Kind {
		case genotype.Missing:
			expect.EQ(t, len(call.Alleles), 0)
			expect.False(t, call.Lenient)
		case genotype.WildType:
			expect.EQ(t, call.Alleles, []string{"A0"})
		case genotype.Mutant:
			expect.EQ(t, len(call.Alleles), 1)
			expect.True(t, call.Alleles[0] != "A0")
		case genotype.Het:
			expect.True(t, len(call.Alleles) >= 2)
		default:
			t.Fatalf("unexpected kind %v", call.Kind)
		}
	}
}

func TestStrandBias(t *testing.T) {
	policy := locus.StrandBiasPolicy{Enabled: true, MinProportion: 0.1}
	caller := genotype.NewCaller(locus.DefaultThresholds, policy)

	biased := genotype.NewCounters()
	biased.AddN("ATG", 10, 0)
	biased.AddN("ATA", 10, 10)
	call := caller.Call(biased, "ATG")
	expect.EQ(t, call.Kind, genotype.WildType)

	balanced := genotype.NewCounters()
	balanced.AddN("ATG", 10, 0)
	balanced.AddN("ATA", 10, 3)
	call = caller.Call(balanced, "ATG")
	expect.EQ(t, call.Kind, genotype.Het)

	// The reference allele is never vetoed.
	refOnly := genotype.NewCounters()
	refOnly.AddN("ATG", 10, 0)
	call = caller.Call(refOnly, "ATG")
	expect.EQ(t, call.Kind, genotype.WildType)

	// A vetoed mutant leaves too few reads for a stringent call.
	mutant := genotype.NewCounters()
	mutant.AddN("ATA", 10, 0)
	expect.EQ(t, caller.Call(mutant, "ATG").Kind, genotype.Missing)

	disabled := genotype.NewCaller(locus.DefaultThresholds, locus.StrandBiasPolicy{MinProportion: 0.1})
	expect.EQ(t, disabled.Call(biased, "ATG").Kind, genotype.Het)
}

func TestAminoCall(t *testing.T) {
	caller := genotype.NewCaller(locus.DefaultThresholds, locus.StrandBiasPolicy{})

	// Synonymous alleles collapse to the reference amino acid.
	c := newCounters("GCT", 10, "GCC", 10)
	nt := caller.Call(c, "GCT")
	expect.EQ(t, nt.Kind, genotype.Het)
	aa := genotype.AminoCall(nt, c)
	expect.EQ(t, aa.Level, genotype.Amino)
	expect.EQ(t, aa.Kind, genotype.WildType)
	expect.EQ(t, aa.Alleles, []string{"A"})
	expect.EQ(t, aa.Ref, "A")
	expect.EQ(t, aa.Summary, "A:20")

	// A synonymous pair plus a non-synonymous allele stays heterozygous.
	c = newCounters("GCT", 10, "GAT", 10, "GCC", 10)
	aa = genotype.AminoCall(caller.Call(c, "GCT"), c)
	expect.EQ(t, aa.Kind, genotype.Het)
	expect.EQ(t, aa.RefRelative(), "./D")
	expect.EQ(t, aa.Summary, "A:20,D:10")

	c = newCounters("AAA", 3)
	aa = genotype.AminoCall(caller.Call(c, "GCT"), c)
	expect.EQ(t, aa.Kind, genotype.Mutant)
	expect.True(t, aa.Lenient)
	expect.EQ(t, aa.Render(), "[k]")

	c = genotype.NewCounters()
	aa = genotype.AminoCall(caller.Call(c, "GCT"), c)
	expect.EQ(t, aa.Kind, genotype.Missing)
	expect.EQ(t, aa.Render(), genotype.MissingMark)
}

func TestParseCallKind(t *testing.T) {
	for _, k := range []genotype.CallKind{genotype.Missing, genotype.WildType, genotype.Mutant, genotype.Het} {
		got, ok := genotype.ParseCallKind(k.String())
		expect.True(t, ok)
		expect.EQ(t, got, k)
	}
	_, ok := genotype.ParseCallKind("bogus")
	expect.False(t, ok)
}
