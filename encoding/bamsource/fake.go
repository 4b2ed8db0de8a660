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
package bamsource

import (
	"fmt"
	"sync"

	"github.com/grailbio/hts/sam"
)

type fakeSource struct {
	header *sam.Header
	recs   []*sam.Record

	mu      sync.Mutex
	nActive int
}

type fakeIterator struct {
	src    *fakeSource
	recs   []*sam.Record
	rec    *sam.Record
	accept func(*sam.Record) bool
}

// NewFakeSource creates a source that returns "header" in response to a
// Header() call, and serves Query and Unmapped from recs.  recs need not be
// sorted.  Like BAMSource, Close fails if an iterator is still open.
func NewFakeSource(header *sam.Header, recs []*sam.Record) Source {
	return &fakeSource{header: header, recs: recs}
}

func (b *fakeSource) newIterator(accept func(*sam.Record) bool) *fakeIterator {
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()
	return &fakeIterator{src: b, recs: b.recs, accept: accept}
}

// Header implements the Source interface. It returns the header passed to
// the constructor.
func (b *fakeSource) Header() (*sam.Header, error) {
	return b.header, nil
}

// Query implements the Source interface.
func (b *fakeSource) Query(refName string, start, limit int) Iterator {
	ref := RefByName(b.header, refName)
	if ref == nil {
		return NewErrorIterator(unknownRefError(refName))
	}
	return b.newIterator(func(r *sam.Record) bool {
		return overlaps(r, ref, start, limit)
	})
}

// Unmapped implements the Source interface.
func (b *fakeSource) Unmapped() Iterator {
	return b.newIterator(func(r *sam.Record) bool {
		return r.Ref == nil
	})
}

// Close implements the Source interface.
func (b *fakeSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive > 0 {
		return fmt.Errorf("fake source closed with %d active iterators", b.nActive)
	}
	return nil
}

func (i *fakeIterator) Scan() bool {
	for len(i.recs) > 0 {
		i.rec = i.recs[0]
		i.recs = i.recs[1:]
		if i.accept(i.rec) {
			return true
		}
	}
	return false
}

func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	copy := *i.rec
	return &copy
}

// Err implements the Iterator interface.
func (i *fakeIterator) Err() error {
	return nil
}

// Close implements the Iterator interface.
func (i *fakeIterator) Close() error {
	i.src.mu.Lock()
	i.src.nActive--
	i.src.mu.Unlock()
	return nil
}
