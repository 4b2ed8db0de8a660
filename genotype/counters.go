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

import (
	"sort"
	"strconv"
	"strings"
)

// Counter is the read support of one allele.
type Counter struct {
	Allele string
	Count  int
	// Reverse is the number of reads supporting the allele that map to the
	// reverse strand.
	Reverse int
}

// Forward is the number of supporting reads on the forward strand.
func (c Counter) Forward() int {
	return c.Count - c.Reverse
}

// Counters tallies alleles for one (sample, target) pair.  Alleles are kept
// in the order they were first seen.
type Counters struct {
	order  []string
	counts map[string]*Counter
}

// NewCounters returns empty counters.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]*Counter)}
}

// Add counts one read of allele.
func (c *Counters) Add(allele string, reverse bool) {
	rev := 0
	if reverse {
		rev = 1
	}
	c.AddN(allele, 1, rev)
}

// AddN adds count reads of allele, reverse of which are on the reverse
// strand.
func (c *Counters) AddN(allele string, count, reverse int) {
	cnt, ok := c.counts[allele]
	if !ok {
		cnt = &Counter{Allele: allele}
		c.counts[allele] = cnt
		c.order = append(c.order, allele)
	}
	cnt.Count += count
	cnt.Reverse += reverse
}

// Get returns the counter for allele.
func (c *Counters) Get(allele string) (Counter, bool) {
	cnt, ok := c.counts[allele]
	if !ok {
		return Counter{}, false
	}
	return *cnt, true
}

// Len is the number of distinct alleles.
func (c *Counters) Len() int {
	return len(c.order)
}

// Total is the number of reads over all alleles.
func (c *Counters) Total() int {
	n := 0
	for _, cnt := range c.counts {
		n += cnt.Count
	}
	return n
}

// Alleles returns the counters in first-seen order.
func (c *Counters) Alleles() []Counter {
	out := make([]Counter, len(c.order))
	for i, a := range c.order {
		out[i] = *c.counts[a]
	}
	return out
}

// Sorted returns the counters by descending count.  Ties keep first-seen
// order.
func (c *Counters) Sorted() []Counter {
	out := c.Alleles()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Filter returns a copy of c holding only the alleles for which keep
// returns true.
func (c *Counters) Filter(keep func(Counter) bool) *Counters {
	out := NewCounters()
	for _, cnt := range c.Alleles() {
		if keep(cnt) {
			out.AddN(cnt.Allele, cnt.Count, cnt.Reverse)
		}
	}
	return out
}

// MinCleanupReads is the smallest read count an allele needs to survive
// Cleanup.
const MinCleanupReads = 2

// Cleanup removes alleles containing an N and alleles seen in fewer than
// MinCleanupReads reads.  It is idempotent.
func (c *Counters) Cleanup() {
	order := c.order[:0]
	for _, a := range c.order {
		if strings.IndexByte(a, 'N') >= 0 || c.counts[a].Count < MinCleanupReads {
			delete(c.counts, a)
			continue
		}
		order = append(order, a)
	}
	c.order = order
}

// Summary renders all alleles as "allele:count", by descending count.
func (c *Counters) Summary() string {
	var b strings.Builder
	for i, cnt := range c.Sorted() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(cnt.Allele)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(cnt.Count))
	}
	return b.String()
}
