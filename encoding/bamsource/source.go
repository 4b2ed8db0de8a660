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

	"github.com/grailbio/hts/sam"
)

// Source yields alignment records for one sample. Thread compatible.
type Source interface {
	// Header returns the header of the underlying alignment file.  The callee
	// must not modify the returned header object.
	Header() (*sam.Header, error)

	// Query returns an iterator over records whose alignment overlaps
	// [start, limit) on refName.  Coordinates are 0-based, half-open.
	// Records are yielded in file (coordinate) order.
	Query(refName string, start, limit int) Iterator

	// Unmapped returns an iterator over records that carry no reference.
	Unmapped() Iterator

	// Close must be called exactly once, after all iterators are closed.  It
	// returns the first error encountered by the source or its iterators, or
	// an error if an iterator is still open.
	Close() error
}

// Iterator iterates over sam.Records.  It follows the same protocol as the
// bufio.Scanner: call Scan until it returns false, then check Err.
type Iterator interface {
	// Scan advances to the next record.  It returns false at the end of the
	// range or on error.
	Scan() bool

	// Record returns the current record.  The record is owned by the caller
	// after Scan advances; iterators never reuse records.
	Record() *sam.Record

	// Err returns the error encountered during iteration, if any.
	Err() error

	// Close must be called exactly once.  It returns the value of Err().
	Close() error
}

type errorIterator struct {
	err error
}

func (i *errorIterator) Scan() bool          { return false }
func (i *errorIterator) Record() *sam.Record { panic("shall not be called") }
func (i *errorIterator) Err() error          { return i.err }
func (i *errorIterator) Close() error        { return i.err }

// NewErrorIterator returns an iterator that yields nothing and reports err.
// A nil err produces an empty iterator.
func NewErrorIterator(err error) Iterator {
	return &errorIterator{err: err}
}

// RefByName returns the reference named refName in h, or nil.
func RefByName(h *sam.Header, refName string) *sam.Reference {
	for _, ref := range h.Refs() {
		if ref.Name() == refName {
			return ref
		}
	}
	return nil
}

// overlaps reports whether rec's alignment intersects [start, limit) on ref.
func overlaps(rec *sam.Record, ref *sam.Reference, start, limit int) bool {
	if rec.Ref == nil || rec.Ref.ID() != ref.ID() {
		return false
	}
	end := rec.End()
	if end <= rec.Pos {
		// Unmapped-but-placed records have no reference span of their own.
		end = rec.Pos + 1
	}
	return rec.Pos < limit && end > start
}

func unknownRefError(refName string) error {
	return fmt.Errorf("bamsource: reference '%s' not found in header", refName)
}
