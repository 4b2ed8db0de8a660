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

// Package placement turns alignment records into Reads with a reference
// start position.  Records with a usable alignment keep it after their CIGAR
// is folded into the read; everything else is placed by searching the read
// for a locus anchor motif.
package placement

import (
	"github.com/grailbio/ampgeno/interval"
	"github.com/grailbio/ampgeno/sequtil"
	"github.com/grailbio/hts/sam"
)

// MappingStatus records how a Read obtained its start position.
type MappingStatus uint8

const (
	// Unmapped reads have no placement.  They never appear in a placement
	// result.
	Unmapped MappingStatus = iota
	// Mapped reads are placed by the aligner's alignment.
	Mapped
	// Anchored reads are placed by an anchor motif match.
	Anchored
)

func (s MappingStatus) String() string {
	switch s {
	case Mapped:
		return "mapped"
	case Anchored:
		return "anchored"
	}
	return "unmapped"
}

// MissingQual is the quality assigned to bases of records that carry no
// quality string.  Such bases are never rejected on quality.
const MissingQual = 0xff

// Read is a placed read.  Seq has one base per reference position starting
// at Start; reference bases deleted in the read are represented by
// sequtil.GapBase.  A Read is immutable once built.
type Read struct {
	ID  string
	Seq string
	// Qual holds Phred scores, one per base of Seq.
	Qual []byte
	// Start is the 1-based reference position of Seq[0].
	Start   int
	Reverse bool
	Status  MappingStatus
	// Record is the alignment record the read was built from.  It is only used
	// for reporting.
	Record *sam.Record
}

// End is the 1-based reference position of the last base of the read.
func (r *Read) End() int {
	return r.Start + len(r.Seq) - 1
}

// Covers reports whether every base of region lies within the read.
func (r *Read) Covers(region interval.Region) bool {
	return region.Start >= r.Start && region.Stop <= r.End()
}

// Bases returns the bases and qualities of the read inside region.  The
// region must be covered by the read.
func (r *Read) Bases(region interval.Region) (string, []byte) {
	off := region.Start - r.Start
	n := region.Len()
	return r.Seq[off : off+n], r.Qual[off : off+n]
}

// readKey identifies a record within a sample: mates share a name.
func readKey(rec *sam.Record) string {
	switch {
	case rec.Flags&sam.Read1 != 0:
		return rec.Name + "/1"
	case rec.Flags&sam.Read2 != 0:
		return rec.Name + "/2"
	}
	return rec.Name
}

// recordBases returns the record's sequence with every non-ACGT base set to
// N, and its qualities.
func recordBases(rec *sam.Record) ([]byte, []byte) {
	seq := rec.Seq.Expand()
	for i, b := range seq {
		switch b {
		case 'A', 'C', 'G', 'T':
		case 'a', 'c', 'g', 't':
			seq[i] = b - 'a' + 'A'
		default:
			seq[i] = 'N'
		}
	}
	qual := make([]byte, len(seq))
	if len(rec.Qual) == len(seq) && (len(seq) == 0 || rec.Qual[0] != MissingQual) {
		copy(qual, rec.Qual)
	} else {
		for i := range qual {
			qual[i] = MissingQual
		}
	}
	return seq, qual
}

// reverseRead returns seq reverse-complemented and qual reversed.  The inputs
// are not modified.
func reverseRead(seq, qual []byte) ([]byte, []byte) {
	rseq := append([]byte(nil), seq...)
	sequtil.ReverseComp8Inplace(rseq)
	return rseq, sequtil.ReverseBytes(qual)
}
