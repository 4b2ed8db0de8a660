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

// Package sequtil contains small nucleotide-sequence helpers shared by the
// placement and genotyping code: reverse complementation and codon
// translation.
package sequtil

// GapBase marks a reference position that is deleted in a read.
const GapBase = '-'

var revComp8Table [256]byte

func init() {
	for i := range revComp8Table {
		revComp8Table[i] = 'N'
	}
	for _, pair := range [...][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}} {
		revComp8Table[pair[0]] = pair[1]
		revComp8Table[pair[0]+('a'-'A')] = pair[1]
	}
	revComp8Table[GapBase] = GapBase
}

// ReverseComp8Inplace reverse-complements ascii8[].  'A'/'a' maps to 'T',
// 'C'/'c' to 'G', 'G'/'g' to 'C', 'T'/'t' to 'A', gaps are preserved, and
// everything else becomes 'N'.
func ReverseComp8Inplace(ascii8 []byte) {
	nByte := len(ascii8)
	nByteDiv2 := nByte >> 1
	for idx, invIdx := 0, nByte-1; idx != nByteDiv2; idx, invIdx = idx+1, invIdx-1 {
		ascii8[idx], ascii8[invIdx] = revComp8Table[ascii8[invIdx]], revComp8Table[ascii8[idx]]
	}
	if nByte&1 == 1 {
		ascii8[nByteDiv2] = revComp8Table[ascii8[nByteDiv2]]
	}
}

// ReverseComp8 returns the reverse complement of seq as a new string.
func ReverseComp8(seq string) string {
	buf := []byte(seq)
	ReverseComp8Inplace(buf)
	return string(buf)
}

// ReverseBytes returns a reversed copy of b.  Used for quality strings that
// must follow a reverse-complemented sequence.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, j := 0, len(b)-1; j >= 0; i, j = i+1, j-1 {
		out[i] = b[j]
	}
	return out
}
