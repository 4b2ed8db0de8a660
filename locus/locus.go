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

// Package locus describes the genomic windows a run genotypes.  A Locus is a
// small reference window with the anchor motifs used to place reads inside
// it; each Target is a sub-window whose bases are genotyped.  Values are
// built once by Load and are immutable afterwards.
package locus

import (
	"regexp"
	"strings"

	"github.com/grailbio/ampgeno/interval"
	"github.com/grailbio/ampgeno/sequtil"
	"github.com/grailbio/base/errors"
)

// Anchor is a motif expected near a fixed reference position.  A read that
// matches the motif at offset k is placed at Pos - k.
type Anchor struct {
	// Pos is the 1-based reference position of the first base of the motif.
	Pos   int
	Motif string
	re    *regexp.Regexp
}

// NewAnchor compiles motif.  Motifs are regular expressions over the read
// sequence and are matched case-insensitively.
func NewAnchor(pos int, motif string) (Anchor, error) {
	if pos < 1 {
		return Anchor{}, errors.E(errors.Invalid, "anchor position must be positive:", motif)
	}
	if motif == "" {
		return Anchor{}, errors.E(errors.Invalid, "empty anchor motif")
	}
	re, err := regexp.Compile("(?i)" + motif)
	if err != nil {
		return Anchor{}, errors.E(errors.Invalid, err, "anchor motif", motif)
	}
	return Anchor{Pos: pos, Motif: motif, re: re}, nil
}

// Match returns the offset of the leftmost motif match in seq.
func (a Anchor) Match(seq string) (offset int, ok bool) {
	loc := a.re.FindStringIndex(seq)
	if loc == nil {
		return 0, false
	}
	return loc[0], true
}

// StrandBiasPolicy rejects a non-reference allele whose reads come
// overwhelmingly from one strand.
type StrandBiasPolicy struct {
	Enabled bool
	// MinProportion is the smallest acceptable fraction of the allele's reads
	// on its minority strand.
	MinProportion float64
}

// Target is a genotyped sub-window of a locus.  Regions are concatenated in
// order, which lets a codon be assembled around an intron or a gap in the
// reference assembly.
type Target struct {
	Name      string
	Locus     string
	Regions   []interval.Region
	Reverse   bool
	Translate bool
	// RefSeq is the reference allele in the target's reading orientation.
	RefSeq string
}

// Len is the number of bases in the target's genotype string.
func (t *Target) Len() int {
	n := 0
	for _, r := range t.Regions {
		n += r.Len()
	}
	return n
}

// RefAmino is the translation of RefSeq, or "" if the target is not
// translated.
func (t *Target) RefAmino() string {
	if !t.Translate {
		return ""
	}
	return sequtil.Translate(t.RefSeq)
}

// Locus is a named reference window with its anchors and targets.
type Locus struct {
	Name    string
	Regions []interval.Region
	Anchors []Anchor
	Targets []*Target
	// IncludeUnmapped requests that reads with no alignment be anchored
	// against this locus.
	IncludeUnmapped bool
	// AnchorsOnly ignores the aligner's placement and positions every read by
	// anchor search.
	AnchorsOnly bool
	StrandBias  StrandBiasPolicy
}

// Chrom returns the reference sequence the locus lies on.
func (l *Locus) Chrom() string {
	return l.Regions[0].Chrom
}

// Span returns the smallest region covering all of l.Regions.
func (l *Locus) Span() interval.Region {
	span := l.Regions[0]
	for _, r := range l.Regions[1:] {
		if r.Start < span.Start {
			span.Start = r.Start
		}
		if r.Stop > span.Stop {
			span.Stop = r.Stop
		}
	}
	return span
}

// FindAnchor searches seq for each anchor in configured order.  The first
// anchor that matches determines the returned 1-based read start.
func (l *Locus) FindAnchor(seq string) (start int, ok bool) {
	for _, a := range l.Anchors {
		if offset, ok := a.Match(seq); ok {
			return a.Pos - offset, true
		}
	}
	return 0, false
}

// TargetNames returns the target names of l, in order.
func (l *Locus) TargetNames() []string {
	names := make([]string, len(l.Targets))
	for i, t := range l.Targets {
		names[i] = t.Name
	}
	return names
}

func (l *Locus) String() string {
	regions := make([]string, len(l.Regions))
	for i, r := range l.Regions {
		regions[i] = r.String()
	}
	return l.Name + "[" + strings.Join(regions, ",") + "]"
}
