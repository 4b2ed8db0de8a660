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
package sequtil

import "strings"

const (
	// UnknownAmino is emitted for a codon that contains an ambiguous base,
	// a partial gap, or a trailing partial codon.
	UnknownAmino = 'X'
	// DeletedAmino is emitted for a codon that is entirely deleted.
	DeletedAmino = '-'
	// StopAmino is the translation of a stop codon.
	StopAmino = '*'
)

// codonTable is the standard genetic code.
var codonTable = map[string]byte{
	"TTT": 'F', "TTC": 'F',
	"TTA": 'L', "TTG": 'L', "CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"ATT": 'I', "ATC": 'I', "ATA": 'I',
	"ATG": 'M',
	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S', "AGT": 'S', "AGC": 'S',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"TAT": 'Y', "TAC": 'Y',
	"TAA": StopAmino, "TAG": StopAmino, "TGA": StopAmino,
	"CAT": 'H', "CAC": 'H',
	"CAA": 'Q', "CAG": 'Q',
	"AAT": 'N', "AAC": 'N',
	"AAA": 'K', "AAG": 'K',
	"GAT": 'D', "GAC": 'D',
	"GAA": 'E', "GAG": 'E',
	"TGT": 'C', "TGC": 'C',
	"TGG": 'W',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R', "AGA": 'R', "AGG": 'R',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

// Translate converts a nucleotide sequence to amino acids, one letter per
// codon.  A trailing partial codon translates to UnknownAmino.
func Translate(nts string) string {
	nts = strings.ToUpper(nts)
	out := make([]byte, 0, (len(nts)+2)/3)
	for i := 0; i < len(nts); i += 3 {
		if i+3 > len(nts) {
			out = append(out, UnknownAmino)
			break
		}
		codon := nts[i : i+3]
		if codon == "---" {
			out = append(out, DeletedAmino)
			continue
		}
		aa, ok := codonTable[codon]
		if !ok {
			aa = UnknownAmino
		}
		out = append(out, aa)
	}
	return string(out)
}
