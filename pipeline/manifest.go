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

package pipeline

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Entry is one row of a sample manifest.
type Entry struct {
	Sample string `tsv:"Sample"`
	BAM    string `tsv:"BAM"`
	// Index is the path of the BAM index.  If empty, BAM + ".bai" is used.
	Index string `tsv:"Index"`
}

// ParseManifest reads a manifest with the header "Sample BAM Index".  Sample
// names must be unique and nonempty.
func ParseManifest(r io.Reader) ([]Entry, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	var (
		entries []Entry
		seen    = make(map[string]bool)
	)
	for line := 2; ; line++ {
		var e Entry
		if err := tr.Read(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, "manifest")
		}
		if e.Sample == "" || e.BAM == "" {
			return nil, errors.E(errors.Invalid, "manifest line", line, "needs both Sample and BAM")
		}
		if seen[e.Sample] {
			return nil, errors.E(errors.Invalid, "manifest: duplicate sample", e.Sample)
		}
		seen[e.Sample] = true
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, errors.E(errors.Invalid, "manifest: no samples")
	}
	return entries, nil
}

// ReadManifest reads the manifest at path.
func ReadManifest(ctx context.Context, path string) (entries []Entry, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	if entries, err = ParseManifest(in.Reader(ctx)); err != nil {
		return nil, errors.E(err, path)
	}
	return entries, nil
}

// Samples returns the sample names of entries, in order.
func Samples(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Sample
	}
	return names
}
