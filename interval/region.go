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
package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is a 1-based, closed genomic interval on a single contig.
type Region struct {
	Chrom string
	Start int
	Stop  int
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
// Unlike samtools, a bare contig ID is rejected: every region used for
// genotyping must be bounded.
func ParseRegionString(region string) (result Region, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		err = fmt.Errorf("interval.ParseRegionString: %q has no position range", region)
		return
	}
	if colonPos == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty contig ID")
		return
	}
	result.Chrom = region[0:colonPos]
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int
		if pos1, err = strconv.Atoi(rangeStr); err != nil {
			return
		}
		if pos1 <= 0 {
			err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr)
			return
		}
		result.Start = pos1
		result.Stop = pos1
		return
	}
	var start1, stop1 int
	if start1, err = strconv.Atoi(rangeStr[:dashPos]); err != nil {
		return
	}
	if start1 <= 0 {
		err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr[:dashPos])
		return
	}
	if stop1, err = strconv.Atoi(rangeStr[dashPos+1:]); err != nil {
		return
	}
	if stop1 < start1 {
		err = fmt.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start = start1
	result.Stop = stop1
	return
}

// Len returns the number of bases covered by r.
func (r Region) Len() int {
	return r.Stop - r.Start + 1
}

// Start0 returns the 0-based start of r.
func (r Region) Start0() int {
	return r.Start - 1
}

// End0 returns the 0-based exclusive end of r.
func (r Region) End0() int {
	return r.Stop
}

// Contains returns true iff other lies completely inside r.
func (r Region) Contains(other Region) bool {
	return r.Chrom == other.Chrom && r.Start <= other.Start && other.Stop <= r.Stop
}

// String renders r in the form accepted by ParseRegionString.
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.Stop)
}
