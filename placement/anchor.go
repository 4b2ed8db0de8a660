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
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/hts/sam"
)

// Anchor places an aligned record against l by motif search, ignoring its
// alignment.  The record's bases are searched as stored, i.e. in reference
// orientation.
func Anchor(rec *sam.Record, l *locus.Locus) (Read, bool) {
	seq, qual := recordBases(rec)
	return anchorBases(rec, seq, qual, rec.Flags&sam.Reverse != 0, l)
}

// AnchorUnmapped places a record with no alignment against every locus in
// loci.  All loci are first tried with the bases as sequenced; only if none
// matches is the reverse complement tried.  The returned reads are parallel
// to the returned loci.
func AnchorUnmapped(rec *sam.Record, loci []*locus.Locus) ([]*locus.Locus, []Read) {
	seq, qual := recordBases(rec)
	matched, reads := anchorAll(rec, seq, qual, false, loci)
	if len(matched) > 0 {
		return matched, reads
	}
	rseq, rqual := reverseRead(seq, qual)
	return anchorAll(rec, rseq, rqual, true, loci)
}

func anchorAll(rec *sam.Record, seq, qual []byte, reverse bool, loci []*locus.Locus) ([]*locus.Locus, []Read) {
	var (
		matched []*locus.Locus
		reads   []Read
	)
	for _, l := range loci {
		if r, ok := anchorBases(rec, seq, qual, reverse, l); ok {
			matched = append(matched, l)
			reads = append(reads, r)
		}
	}
	return matched, reads
}

func anchorBases(rec *sam.Record, seq, qual []byte, reverse bool, l *locus.Locus) (Read, bool) {
	start, ok := l.FindAnchor(string(seq))
	if !ok {
		return Read{}, false
	}
	return Read{
		ID:      rec.Name,
		Seq:     string(seq),
		Qual:    qual,
		Start:   start,
		Reverse: reverse,
		Status:  Anchored,
		Record:  rec,
	}, true
}
