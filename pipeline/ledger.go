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
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Stages recorded in the failure ledger.
const (
	StageGenotype = "genotype"
	StageMerge    = "merge"
)

var ledgerColumns = []string{"RunID", "Sample", "Stage", "Message"}

// Failure is one row of the failure ledger.
type Failure struct {
	RunID   string `tsv:"RunID"`
	Sample  string `tsv:"Sample"`
	Stage   string `tsv:"Stage"`
	Message string `tsv:"Message"`
}

var messageCleaner = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// Ledger appends per-sample failures to a TSV file shared by all runs that
// write into the same output directory.  It is safe for concurrent use.
type Ledger struct {
	path  string
	runID string

	mu sync.Mutex
	n  int
}

// NewLedger creates a ledger appending to path.  The file is created on the
// first failure.
func NewLedger(path, runID string) *Ledger {
	return &Ledger{path: path, runID: runID}
}

// Path returns the path of the ledger file.
func (l *Ledger) Path() string { return l.path }

// Len returns the number of failures recorded by this ledger.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Record appends a failure of sample at stage.  The header is written if
// the file is new or empty.
func (l *Ledger) Record(sample, stage string, cause error) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err = os.MkdirAll(filepath.Dir(l.path), 0777); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f)
	if info.Size() == 0 {
		for _, col := range ledgerColumns {
			w.WriteString(col)
		}
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	w.WriteString(l.runID)
	w.WriteString(sample)
	w.WriteString(stage)
	w.WriteString(messageCleaner.Replace(cause.Error()))
	if err = w.EndLine(); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	l.n++
	return nil
}

// record logs a failure and appends it to the ledger.  A ledger write error
// is logged and otherwise ignored.
func (l *Ledger) record(sample, stage string, cause error) {
	log.Error.Printf("%s %s: %v", stage, sample, cause)
	if err := l.Record(sample, stage, cause); err != nil {
		log.Error.Printf("ledger %s: %v", l.path, err)
	}
}

// ReadLedger reads every failure recorded at path.
func ReadLedger(ctx context.Context, path string) (failures []Failure, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		if errors.Is(errors.NotExist, err) {
			return nil, errors.E(errors.NotExist, err, path)
		}
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r := tsv.NewReader(in.Reader(ctx))
	r.HasHeaderRow = true
	r.UseHeaderNames = true
	for {
		var f Failure
		if err = r.Read(&f); err != nil {
			if err == io.EOF {
				return failures, nil
			}
			return nil, errors.E(err, path)
		}
		failures = append(failures, f)
	}
}
