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

package genotype

import (
	"strings"

	"github.com/grailbio/ampgeno/locus"
)

// CallKind is the outcome of calling one (sample, target) pair.
type CallKind uint8

const (
	// Missing calls have too little support.
	Missing CallKind = iota
	// WildType calls have a single allele equal to the reference.
	WildType
	// Mutant calls have a single non-reference allele.
	Mutant
	// Het calls have two or more alleles.
	Het
)

func (k CallKind) String() string {
	switch k {
	case WildType:
		return "WT"
	case Mutant:
		return "MU"
	case Het:
		return "HET"
	}
	return "MISS"
}

// ParseCallKind is the inverse of CallKind.String.
func ParseCallKind(s string) (CallKind, bool) {
	for k := Missing; k <= Het; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return Missing, false
}

// Level tells whether a call is over nucleotide or amino acid alleles.
type Level uint8

const (
	Nucleotide Level = iota
	Amino
)

// MissingMark renders a Missing call.
const MissingMark = "-"

// RefMark stands for the reference allele in reference-relative notation.
const RefMark = "."

// Call is the genotype call of one (sample, target) pair.
type Call struct {
	Kind  CallKind
	Level Level
	// Alleles are the accepted alleles, by descending read count.
	Alleles []string
	// Ref is the reference allele at the call's level.
	Ref string
	// Lenient is set if the call was made with the lenient profile.
	Lenient bool
	// Summary lists every allele with its count.
	Summary string
}

// Allele returns the accepted alleles, comma-joined.
func (c Call) Allele() string {
	return strings.Join(c.Alleles, ",")
}

// RefRelative returns the alleles with the reference written as ".",
// slash-joined.
func (c Call) RefRelative() string {
	parts := make([]string, len(c.Alleles))
	for i, a := range c.Alleles {
		if a == c.Ref {
			parts[i] = RefMark
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, "/")
}

func (c Call) decorate(s string) string {
	if c.Kind == Missing {
		return MissingMark
	}
	if c.Lenient {
		return "[" + strings.ToLower(s) + "]"
	}
	return s
}

// Render formats the call for a call matrix.
func (c Call) Render() string {
	return c.decorate(c.Allele())
}

// RenderRef formats the call in reference-relative notation for a call
// matrix.
func (c Call) RenderRef() string {
	return c.decorate(c.RefRelative())
}

// kindOf derives the call kind from a set of distinct accepted alleles.
func kindOf(alleles []string, ref string) CallKind {
	switch {
	case len(alleles) == 0:
		return Missing
	case len(alleles) >= 2:
		return Het
	case alleles[0] == ref:
		return WildType
	}
	return Mutant
}

// Profile is one parameterization of the calling thresholds.
type Profile struct {
	MinCallReads   int
	MinAlleleReads int
}

// Caller calls targets of one locus.
type Caller struct {
	Stringent  Profile
	Lenient    Profile
	Genotyper  Genotyper
	StrandBias locus.StrandBiasPolicy
}

// NewCaller builds a caller from the configured thresholds and the locus'
// strand bias policy.
func NewCaller(th locus.Thresholds, strandBias locus.StrandBiasPolicy) *Caller {
	return &Caller{
		Stringent:  Profile{MinCallReads: th.MinCallReads, MinAlleleReads: th.MinAlleleReads},
		Lenient:    Profile{MinCallReads: th.LenientMinCallReads, MinAlleleReads: th.LenientMinAlleleReads},
		Genotyper:  NewGenotyper(th.MinAlleleProp),
		StrandBias: strandBias,
	}
}

// Call calls counters against the reference allele ref.  The stringent
// profile is tried first; the lenient one only if the stringent call is
// Missing.
func (c *Caller) Call(counters *Counters, ref string) Call {
	call := Call{Level: Nucleotide, Ref: ref, Summary: counters.Summary()}
	sorted := counters.Sorted()
	total := counters.Total()
	if alleles := c.accept(c.Stringent, sorted, total, ref); len(alleles) > 0 {
		call.Alleles = alleles
	} else if alleles := c.accept(c.Lenient, sorted, total, ref); len(alleles) > 0 {
		call.Alleles = alleles
		call.Lenient = true
	}
	call.Kind = kindOf(call.Alleles, ref)
	return call
}

// accept returns the alleles accepted under profile p, or nil if the call is
// Missing.
func (c *Caller) accept(p Profile, sorted []Counter, total int, ref string) []string {
	if len(sorted) == 0 || total < p.MinCallReads {
		return nil
	}
	var (
		alleles []string
		sum     int
	)
	for _, cnt := range sorted {
		if !c.Genotyper.Valid(cnt.Count, total) || cnt.Count < p.MinAlleleReads {
			break
		}
		if cnt.Allele != ref && c.strandBiased(cnt) {
			continue
		}
		alleles = append(alleles, cnt.Allele)
		sum += cnt.Count
	}
	if sum < p.MinCallReads {
		return nil
	}
	return alleles
}

// strandBiased reports whether the policy vetoes cnt because too few of its
// reads come from its minority strand.
func (c *Caller) strandBiased(cnt Counter) bool {
	if !c.StrandBias.Enabled || cnt.Count == 0 {
		return false
	}
	minority := cnt.Reverse
	if f := cnt.Forward(); f < minority {
		minority = f
	}
	return float64(minority)/float64(cnt.Count) < c.StrandBias.MinProportion
}
