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

/*
bio-amplicon genotypes amplicon sequencing data at configured target loci.

  bio-amplicon genotype -config loci.yaml -ref ref.fa -out outdir manifest.tsv

places the reads of every sample in the manifest at their loci, builds a
consensus per locus, counts the alleles of every target and calls each
sample.  After all samples finish, the cohort phase drops alleles that are
never established in any sample and calls every sample again.  Per-sample
tables are written under outdir/samples, cohort tables under outdir/cohort
and per-sample failures are appended to outdir/warnings.tsv.

  bio-amplicon merge -config loci.yaml -out outdir manifest.tsv

reruns only the cohort phase from the per-sample tables already in outdir.

The manifest is a TSV file with the header "Sample BAM Index".  Thresholds in
the configuration may be overridden with GENOTYPER_* environment variables,
e.g. GENOTYPER_MIN_ALT_READS=5.
*/
package main
