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

package consensus

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/ampgeno/encoding/fasta"
	"github.com/grailbio/ampgeno/interval"
)

// Reference returns the reference bases under the alignment's columns.
// Columns outside chrom are reported as N.  It returns "" if ref does not
// contain chrom.
func (a *Alignment) Reference(ref fasta.Fasta, chrom string) string {
	if a.Len == 0 {
		return ""
	}
	if _, err := ref.Len(chrom); err != nil {
		return ""
	}
	region := interval.Region{Chrom: chrom, Start: a.Start, Stop: a.End()}
	seq := fasta.GetClipped(ref, region)
	lead := 0
	if a.Start < 1 {
		lead = 1 - a.Start
	}
	if lead > a.Len {
		lead = a.Len
	}
	tail := a.Len - lead - len(seq)
	if tail < 0 {
		tail = 0
	}
	return strings.Repeat("N", lead) + seq + strings.Repeat("N", tail)
}

// WriteReport writes a human-readable rendering of the alignment: a header
// line, the reference and consensus rows, then one row per read.
func (a *Alignment) WriteReport(w io.Writer, name, chrom, refSeq string) error {
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, "# %s %s:%d-%d reads=%d misaligned=%d\n",
		name, chrom, a.Start, a.End(), len(a.Reads), a.NumMisaligned())
	if refSeq != "" {
		fmt.Fprintf(b, "%s\treference\n", refSeq)
	}
	fmt.Fprintf(b, "%s\tconsensus\n", a.Consensus)
	for i, r := range a.Reads {
		strand := "+"
		if r.Reverse {
			strand = "-"
		}
		flag := "aligned"
		if a.Misaligned(i) {
			flag = "misaligned"
		}
		fmt.Fprintf(b, "%s\t%s\t%s\t%s\tmismatches=%d\t%s\n",
			a.Row(i), r.ID, r.Status, strand, a.Mismatches[i], flag)
	}
	return b.Flush()
}
