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
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMSource implements Source for an indexed, coordinate-sorted BAM file.
// Both the BAM and the index may be S3 URLs, in which case the data will be
// read from S3.  Otherwise the data will be read from the local filesystem.
type BAMSource struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of *.bam.bai file. If "", Path + ".bai"
	Index string
	err   errors.Once

	mu          sync.Mutex
	nActive     int
	header      *sam.Header
	index       *bam.Index
	firstRecord bgzf.Offset
}

// NewBAMSource creates a Source reading path.  indexPath may be empty.
func NewBAMSource(path, indexPath string) *BAMSource {
	return &BAMSource{Path: path, Index: indexPath}
}

func (b *BAMSource) indexPath() string {
	if b.Index == "" {
		return b.Path + ".bai"
	}
	return b.Index
}

// load reads the header and the index exactly once.
func (b *BAMSource) load() (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return nil
	}
	defer func() { b.err.Set(err) }()
	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		return err
	}
	defer in.Close(ctx) // nolint: errcheck
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return fmt.Errorf("bamsource: %s: %v", b.Path, err)
	}
	defer reader.Close() // nolint: errcheck

	indexIn, err := file.Open(ctx, b.indexPath())
	if err != nil {
		return err
	}
	defer indexIn.Close(ctx) // nolint: errcheck
	idx, err := bam.ReadIndex(indexIn.Reader(ctx))
	if err != nil {
		return fmt.Errorf("bamsource: %s: %v", b.indexPath(), err)
	}
	b.header = reader.Header()
	b.index = idx
	b.firstRecord = reader.LastChunk().End
	vlog.VI(1).Infof("%s: loaded header with %d references", b.Path, len(b.header.Refs()))
	return nil
}

// Header implements Source.
func (b *BAMSource) Header() (*sam.Header, error) {
	if err := b.load(); err != nil {
		return nil, err
	}
	return b.header, nil
}

// Query implements Source.
func (b *BAMSource) Query(refName string, start, limit int) Iterator {
	if err := b.load(); err != nil {
		return NewErrorIterator(err)
	}
	ref := RefByName(b.header, refName)
	if ref == nil {
		return NewErrorIterator(unknownRefError(refName))
	}
	if start < 0 {
		start = 0
	}
	if limit > ref.Len() {
		limit = ref.Len()
	}
	if start >= limit {
		return NewErrorIterator(nil)
	}
	chunks, err := b.index.Chunks(ref, start, limit)
	if err == index.ErrInvalid || (err == nil && len(chunks) == 0) {
		// No reads for this interval.
		vlog.VI(1).Infof("%s: no index chunks for %s:%d-%d", b.Path, refName, start, limit)
		return NewErrorIterator(nil)
	}
	if err != nil {
		return NewErrorIterator(err)
	}
	iter := b.open()
	if iter.err != nil {
		return iter
	}
	iter.ref, iter.start, iter.limit = ref, start, limit
	iter.chunked, iter.err = bam.NewIterator(iter.reader, chunks)
	return iter
}

// Unmapped implements Source.
func (b *BAMSource) Unmapped() Iterator {
	if err := b.load(); err != nil {
		return NewErrorIterator(err)
	}
	iter := b.open()
	if iter.err != nil {
		return iter
	}
	iter.unmapped = true
	offset, err := b.findUnmappedOffset()
	if err != nil {
		iter.err = err
		return iter
	}
	iter.err = iter.reader.Seek(offset)
	return iter
}

// Close implements Source.
func (b *BAMSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive > 0 {
		vlog.Errorf("%d iterators still active for %s", b.nActive, b.Path)
		return fmt.Errorf("bamsource: %s: closed with %d active iterators", b.Path, b.nActive)
	}
	return b.err.Err()
}

// Find the file offset at which the first unmapped sequence is stored. This
// function is conservative; it may return an offset that's smaller than
// absolutely necessary.
func (b *BAMSource) findUnmappedOffset() (bgzf.Offset, error) {
	var lastOffset bgzf.Offset
	foundRefs := false
	for _, r := range b.header.Refs() {
		chunks, err := b.index.Chunks(r, 0, r.Len())
		if err == index.ErrInvalid || (err == nil && len(chunks) == 0) {
			// There are no reads on this reference, but don't worry about it.
			continue
		}
		if err != nil {
			return lastOffset, err
		}
		foundRefs = true
		c := chunks[len(chunks)-1]
		if c.End.File > lastOffset.File ||
			(c.End.File == lastOffset.File && c.End.Block > lastOffset.Block) {
			lastOffset = c.End
		}
	}
	if !foundRefs {
		return b.firstRecord, nil
	}
	return lastOffset, nil
}

func (b *BAMSource) open() *bamIterator {
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()
	iter := &bamIterator{source: b}
	ctx := vcontext.Background()
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		return iter
	}
	iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1)
	return iter
}

type bamIterator struct {
	source *BAMSource
	in     file.File
	reader *bam.Reader

	// Set for interval queries.
	chunked      *bam.Iterator
	ref          *sam.Reference
	start, limit int

	unmapped bool
	rec      *sam.Record
	err      error
}

func (i *bamIterator) Scan() bool {
	if i.err != nil {
		return false
	}
	if i.unmapped {
		for {
			i.rec, i.err = i.reader.Read()
			if i.err != nil {
				return false
			}
			if i.rec.Ref == nil {
				return true
			}
		}
	}
	for i.chunked.Next() {
		rec := i.chunked.Record()
		if overlaps(rec, i.ref, i.start, i.limit) {
			i.rec = rec
			return true
		}
	}
	i.err = i.chunked.Error()
	return false
}

func (i *bamIterator) Record() *sam.Record {
	return i.rec
}

func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

func (i *bamIterator) Close() error {
	if i.chunked != nil {
		if err := i.chunked.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.chunked = nil
	}
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	err := i.Err()
	b := i.source
	b.err.Set(err)
	b.mu.Lock()
	b.nActive--
	b.mu.Unlock()
	return err
}
