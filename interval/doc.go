/*Package interval handles the small genomic windows a genotyping run works
  with: locus search intervals and target sub-regions.  Regions are written
  samtools-style in configuration and on the command line
  ("chr:first-last", 1-based, closed), and converted to the 0-based half-open
  form expected by BAM index queries and FASTA slicing where needed.
*/
package interval
