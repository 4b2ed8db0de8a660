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

import "github.com/grailbio/ampgeno/sequtil"

// TranslateCounters folds nucleotide counters into amino acid counters.
// Alleles that translate identically are merged.
func TranslateCounters(c *Counters) *Counters {
	out := NewCounters()
	for _, cnt := range c.Alleles() {
		out.AddN(sequtil.Translate(cnt.Allele), cnt.Count, cnt.Reverse)
	}
	return out
}

// AminoCall derives the amino acid view of a nucleotide call.  The accepted
// alleles are translated and collapsed, and the call kind is derived again,
// so a nucleotide Het of two synonymous alleles becomes an amino acid
// WildType or Mutant.  counters are the counters nt was made from.
func AminoCall(nt Call, counters *Counters) Call {
	ref := sequtil.Translate(nt.Ref)
	call := Call{
		Level:   Amino,
		Ref:     ref,
		Lenient: nt.Lenient,
		Summary: TranslateCounters(counters).Summary(),
	}
	seen := make(map[string]bool)
	for _, a := range nt.Alleles {
		aa := sequtil.Translate(a)
		if !seen[aa] {
			seen[aa] = true
			call.Alleles = append(call.Alleles, aa)
		}
	}
	call.Kind = kindOf(call.Alleles, ref)
	return call
}
