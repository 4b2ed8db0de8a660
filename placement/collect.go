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
	"github.com/grailbio/ampgeno/encoding/bamsource"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Stats counts what happened to the records of one sample.
type Stats struct {
	// Records is the number of records read from the source.
	Records int
	// Filtered counts secondary, supplementary and QC-failed records.
	Filtered int
	// Repeats counts records already placed in the same locus by an
	// overlapping search region.
	Repeats int
	// Mapped counts placements that kept their alignment.
	Mapped int
	// CigarErrors counts alignments that could not be refined.
	CigarErrors int
	// Anchored counts placements found by anchor search.
	Anchored int
	// Dropped counts records that could not be placed.
	Dropped int
}

// Merge adds the field values of the two Stats objects.
func (s Stats) Merge(o Stats) Stats {
	s.Records += o.Records
	s.Filtered += o.Filtered
	s.Repeats += o.Repeats
	s.Mapped += o.Mapped
	s.CigarErrors += o.CigarErrors
	s.Anchored += o.Anchored
	s.Dropped += o.Dropped
	return s
}

const nonPassing = sam.Secondary | sam.Supplementary | sam.QCFail

// Collector accumulates the placed reads of one sample.
type Collector struct {
	loci     []*locus.Locus
	maxIndel int

	reads map[*locus.Locus][]Read
	seen  map[*locus.Locus]map[string]bool
	stats Stats
}

// NewCollector creates a collector for loci.  Alignments with an insertion
// or deletion longer than maxIndel are anchored instead.
func NewCollector(loci []*locus.Locus, maxIndel int) *Collector {
	c := &Collector{
		loci:     loci,
		maxIndel: maxIndel,
		reads:    make(map[*locus.Locus][]Read),
		seen:     make(map[*locus.Locus]map[string]bool),
	}
	for _, l := range loci {
		c.seen[l] = make(map[string]bool)
	}
	return c
}

// Reads returns the reads placed in l, in placement order.
func (c *Collector) Reads(l *locus.Locus) []Read {
	return c.reads[l]
}

// Stats returns the placement counters.
func (c *Collector) Stats() Stats {
	return c.stats
}

func (c *Collector) add(l *locus.Locus, r Read) {
	switch r.Status {
	case Mapped:
		c.stats.Mapped++
	case Anchored:
		c.stats.Anchored++
	}
	c.reads[l] = append(c.reads[l], r)
}

// filter reports whether rec should be ignored.  It also marks rec as seen
// in l.
func (c *Collector) filter(l *locus.Locus, rec *sam.Record) bool {
	c.stats.Records++
	if rec.Flags&nonPassing != 0 {
		c.stats.Filtered++
		return true
	}
	key := readKey(rec)
	if c.seen[l][key] {
		c.stats.Repeats++
		return true
	}
	c.seen[l][key] = true
	return false
}

// AddMapped places a record found by an interval query of l.
func (c *Collector) AddMapped(l *locus.Locus, rec *sam.Record) {
	if c.filter(l, rec) {
		return
	}
	if rec.Flags&sam.Unmapped != 0 {
		// An unaligned mate placed at its partner's position.
		if l.IncludeUnmapped {
			if _, reads := AnchorUnmapped(rec, []*locus.Locus{l}); len(reads) > 0 {
				c.add(l, reads[0])
				return
			}
		}
		c.stats.Dropped++
		return
	}
	if !l.AnchorsOnly {
		r, err := Refine(rec, c.maxIndel)
		if err == nil {
			c.add(l, r)
			return
		}
		c.stats.CigarErrors++
		log.Debug.Printf("placement: %s: %v", l.Name, err)
	}
	if r, ok := Anchor(rec, l); ok {
		c.add(l, r)
		return
	}
	c.stats.Dropped++
}

// AddUnmapped places a record with no alignment against every locus that
// accepts unmapped reads.
func (c *Collector) AddUnmapped(rec *sam.Record) {
	c.stats.Records++
	if rec.Flags&nonPassing != 0 {
		c.stats.Filtered++
		return
	}
	var candidates []*locus.Locus
	key := readKey(rec)
	for _, l := range c.loci {
		if l.IncludeUnmapped && !c.seen[l][key] {
			candidates = append(candidates, l)
		}
	}
	matched, reads := AnchorUnmapped(rec, candidates)
	if len(matched) == 0 {
		c.stats.Dropped++
		return
	}
	for i, l := range matched {
		c.seen[l][key] = true
		c.add(l, reads[i])
	}
}

// scan passes every record of iter to add.  iter is closed even if add
// panics.
func scan(iter bamsource.Iterator, add func(*sam.Record)) (err error) {
	defer func() {
		if cerr := iter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for iter.Scan() {
		add(iter.Record())
	}
	return nil
}

// Collect places every record of src that overlaps a locus region, and, if
// any locus accepts them, every unmapped record.  An error is returned only
// if the source fails.
func Collect(src bamsource.Source, loci []*locus.Locus, maxIndel int) (*Collector, error) {
	c := NewCollector(loci, maxIndel)
	wantUnmapped := false
	for _, l := range loci {
		wantUnmapped = wantUnmapped || l.IncludeUnmapped
		for _, region := range l.Regions {
			err := scan(src.Query(region.Chrom, region.Start0(), region.End0()), func(rec *sam.Record) {
				c.AddMapped(l, rec)
			})
			if err != nil {
				return nil, errors.E(err, "query", region.String())
			}
		}
	}
	if wantUnmapped {
		if err := scan(src.Unmapped(), c.AddUnmapped); err != nil {
			return nil, errors.E(err, "unmapped reads")
		}
	}
	return c, nil
}
