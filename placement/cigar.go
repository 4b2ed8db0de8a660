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

package placement

import (
	"fmt"

	"github.com/grailbio/ampgeno/sequtil"
	"github.com/grailbio/hts/sam"
)

// CigarError reports an alignment that cannot be folded into a Read.  The
// caller recovers from it by anchoring the record instead.
type CigarError struct {
	Read   string
	Op     sam.CigarOp
	Reason string
}

func (e *CigarError) Error() string {
	if e.Op == 0 {
		return fmt.Sprintf("read %s: %s", e.Read, e.Reason)
	}
	return fmt.Sprintf("read %s: cigar op %v: %s", e.Read, e.Op, e.Reason)
}

// isSimple reports whether the alignment is a single contiguous span of
// aligned bases.
func isSimple(cigar sam.Cigar) bool {
	if len(cigar) != 1 {
		return false
	}
	switch cigar[0].Type() {
	case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
		return true
	}
	return false
}

// Refine builds a Mapped Read from an aligned record.  Inserted and
// soft-clipped bases are dropped, and each deleted reference base becomes a
// gap carrying the quality of its preceding base (or, at the start of the
// read, its following base).  A *CigarError is returned for insertions or
// deletions longer than maxIndel, for skipped regions and padding, and for
// CIGARs inconsistent with the sequence.
func Refine(rec *sam.Record, maxIndel int) (Read, error) {
	seq, qual := recordBases(rec)
	r := Read{
		ID:      rec.Name,
		Start:   rec.Pos + 1,
		Reverse: rec.Flags&sam.Reverse != 0,
		Status:  Mapped,
		Record:  rec,
	}
	if len(rec.Cigar) == 0 {
		return Read{}, &CigarError{Read: rec.Name, Reason: "no alignment"}
	}
	if isSimple(rec.Cigar) {
		if rec.Cigar[0].Len() != len(seq) {
			return Read{}, &CigarError{Read: rec.Name, Op: rec.Cigar[0], Reason: "length differs from sequence"}
		}
		r.Seq, r.Qual = string(seq), qual
		return r, nil
	}

	var (
		outSeq  = make([]byte, 0, len(seq))
		outQual = make([]byte, 0, len(qual))
		readPos int
		// Number of gaps emitted before the first aligned base.
		leadingGaps int
	)
	for _, co := range rec.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if readPos+n > len(seq) {
				return Read{}, &CigarError{Read: rec.Name, Op: co, Reason: "extends past the sequence"}
			}
			outSeq = append(outSeq, seq[readPos:readPos+n]...)
			outQual = append(outQual, qual[readPos:readPos+n]...)
			readPos += n
		case sam.CigarInsertion:
			if n > maxIndel {
				return Read{}, &CigarError{Read: rec.Name, Op: co, Reason: "insertion too long"}
			}
			readPos += n
		case sam.CigarDeletion:
			if n > maxIndel {
				return Read{}, &CigarError{Read: rec.Name, Op: co, Reason: "deletion too long"}
			}
			var q byte
			if len(outQual) > leadingGaps {
				q = outQual[len(outQual)-1]
			} else {
				leadingGaps += n
			}
			for i := 0; i < n; i++ {
				outSeq = append(outSeq, sequtil.GapBase)
				outQual = append(outQual, q)
			}
		case sam.CigarSoftClipped:
			readPos += n
		case sam.CigarHardClipped:
		default:
			// Skipped regions and padding.
			return Read{}, &CigarError{Read: rec.Name, Op: co, Reason: "unsupported operation"}
		}
	}
	if readPos != len(seq) {
		return Read{}, &CigarError{Read: rec.Name, Reason: fmt.Sprintf("cigar %v consumes %d bases of %d", rec.Cigar, readPos, len(seq))}
	}
	if leadingGaps == len(outSeq) {
		return Read{}, &CigarError{Read: rec.Name, Reason: "no aligned bases"}
	}
	for i := 0; i < leadingGaps; i++ {
		outQual[i] = outQual[leadingGaps]
	}
	r.Seq, r.Qual = string(outSeq), outQual
	return r, nil
}
