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

// Package genotype extracts per-read target genotypes and turns their counts
// into allele calls.
package genotype

import (
	"strings"

	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/ampgeno/placement"
	"github.com/grailbio/ampgeno/sequtil"
)

// Status classifies the genotype of one read at one target.
type Status uint8

const (
	// Valid genotypes carry an allele.
	Valid Status = iota
	// NoCoverage means the read does not span every target region, or has an
	// ambiguous base inside one.
	NoCoverage
	// LowQuality means some target base is below the quality threshold.
	LowQuality
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case NoCoverage:
		return "no-coverage"
	}
	return "low-quality"
}

// Genotype is the observation of one read at one target.  Two genotypes
// with the same Allele are the same allele.
type Genotype struct {
	Status Status
	// Allele is the target sequence in the target's orientation.  It is empty
	// unless Status is Valid.
	Allele string
}

// Extract computes the genotype of r at t.
func Extract(r *placement.Read, t *locus.Target, minBaseQual int) Genotype {
	for _, region := range t.Regions {
		if !r.Covers(region) {
			return Genotype{Status: NoCoverage}
		}
	}
	var (
		seq     strings.Builder
		minQual = -1
	)
	for _, region := range t.Regions {
		bases, qual := r.Bases(region)
		seq.WriteString(bases)
		for _, q := range qual {
			if minQual < 0 || int(q) < minQual {
				minQual = int(q)
			}
		}
	}
	allele := seq.String()
	if strings.IndexByte(allele, 'N') >= 0 {
		return Genotype{Status: NoCoverage}
	}
	if minQual < minBaseQual {
		return Genotype{Status: LowQuality}
	}
	if t.Reverse {
		allele = sequtil.ReverseComp8(allele)
	}
	return Genotype{Status: Valid, Allele: allele}
}

// Tally is the outcome of genotyping a set of reads at one target.
type Tally struct {
	Target     *locus.Target
	Counters   *Counters
	NoCoverage int
	LowQuality int
}

// TallyReads genotypes each read at t and counts the valid alleles.  The
// counters are not cleaned up.
func TallyReads(reads []placement.Read, t *locus.Target, minBaseQual int) *Tally {
	tally := &Tally{Target: t, Counters: NewCounters()}
	for i := range reads {
		g := Extract(&reads[i], t, minBaseQual)
		switch g.Status {
		case Valid:
			tally.Counters.Add(g.Allele, reads[i].Reverse)
		case NoCoverage:
			tally.NoCoverage++
		case LowQuality:
			tally.LowQuality++
		}
	}
	return tally
}
