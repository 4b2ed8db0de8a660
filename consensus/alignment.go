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

// Package consensus stacks the placed reads of one locus into a gapped
// multiple alignment, computes a majority consensus, and separates reads
// that disagree with it too often.
package consensus

import (
	"sort"

	"github.com/grailbio/ampgeno/placement"
	"github.com/grailbio/ampgeno/sequtil"
	"github.com/willf/bitset"
)

// NoCall is the consensus of a column with no A, C, G or T vote.
const NoCall = 'N'

// Alignment is the multiple alignment of the reads of one (locus, sample)
// pair.  It is immutable once built.
type Alignment struct {
	// Reads are the placed reads, ordered by start position, then by ID.
	Reads []placement.Read
	// Start is the 1-based reference position of column 0.
	Start int
	// Len is the number of columns.
	Len int
	// Consensus has one base per column.
	Consensus string
	// Mismatches[i] is the number of columns where Reads[i] carries a base
	// that differs from the consensus.
	Mismatches []int

	rows       [][]byte
	misaligned *bitset.BitSet
}

// baseIndex maps A, C, G, T to 0..3, in tie-break order.
func baseIndex(b byte) int {
	switch b {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	}
	return -1
}

const bases = "ACGT"

// sortReads returns the reads in a canonical order so that the alignment
// does not depend on the order the source yields records.
func sortReads(reads []placement.Read) []placement.Read {
	sorted := append([]placement.Read(nil), reads...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Reverse != b.Reverse {
			return !a.Reverse
		}
		return a.Seq < b.Seq
	})
	return sorted
}

// New builds the alignment of reads.  A read with more than maxMismatches
// mismatches against the consensus is marked misaligned.
func New(reads []placement.Read, maxMismatches int) *Alignment {
	a := &Alignment{Reads: sortReads(reads)}
	a.misaligned = bitset.New(uint(len(a.Reads)))
	if len(a.Reads) == 0 {
		return a
	}
	a.Start = a.Reads[0].Start
	end := a.Reads[0].End()
	for _, r := range a.Reads[1:] {
		if r.End() > end {
			end = r.End()
		}
	}
	a.Len = end - a.Start + 1

	a.rows = make([][]byte, len(a.Reads))
	for i, r := range a.Reads {
		row := make([]byte, a.Len)
		for j := range row {
			row[j] = sequtil.GapBase
		}
		copy(row[r.Start-a.Start:], r.Seq)
		a.rows[i] = row
	}
	a.computeConsensus()

	a.Mismatches = make([]int, len(a.Reads))
	for i, r := range a.Reads {
		off := r.Start - a.Start
		n := 0
		for j := 0; j < len(r.Seq); j++ {
			b, c := r.Seq[j], a.Consensus[off+j]
			if baseIndex(b) >= 0 && baseIndex(c) >= 0 && b != c {
				n++
			}
		}
		a.Mismatches[i] = n
		if n > maxMismatches {
			a.misaligned.Set(uint(i))
		}
	}
	return a
}

func (a *Alignment) computeConsensus() {
	cons := make([]byte, a.Len)
	for col := 0; col < a.Len; col++ {
		var votes [4]int
		allGaps := true
		for _, row := range a.rows {
			b := row[col]
			if b != sequtil.GapBase {
				allGaps = false
			}
			if k := baseIndex(b); k >= 0 {
				votes[k]++
			}
		}
		best := -1
		for k, n := range votes {
			if n > 0 && (best < 0 || n > votes[best]) {
				best = k
			}
		}
		switch {
		case best >= 0:
			cons[col] = bases[best]
		case allGaps:
			cons[col] = sequtil.GapBase
		default:
			cons[col] = NoCall
		}
	}
	a.Consensus = string(cons)
}

// End is the 1-based reference position of the last column.
func (a *Alignment) End() int {
	return a.Start + a.Len - 1
}

// Row returns the gap-padded alignment row of Reads[i].
func (a *Alignment) Row(i int) string {
	return string(a.rows[i])
}

// Misaligned reports whether Reads[i] disagrees with the consensus too often
// to be genotyped.
func (a *Alignment) Misaligned(i int) bool {
	return a.misaligned.Test(uint(i))
}

// NumMisaligned is the number of misaligned reads.
func (a *Alignment) NumMisaligned() int {
	return int(a.misaligned.Count())
}

// Aligned returns the reads that are not misaligned.
func (a *Alignment) Aligned() []placement.Read {
	aligned := make([]placement.Read, 0, len(a.Reads)-a.NumMisaligned())
	for i, r := range a.Reads {
		if !a.misaligned.Test(uint(i)) {
			aligned = append(aligned, r)
		}
	}
	return aligned
}
