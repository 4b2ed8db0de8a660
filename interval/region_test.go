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
package interval_test

import (
	"testing"

	"github.com/grailbio/ampgeno/interval"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region string
		want   interval.Region
		ok     bool
	}{
		{"Pf3D7_07_v3:403612-403626", interval.Region{"Pf3D7_07_v3", 403612, 403626}, true},
		{"chr1:1,000-2,000", interval.Region{"chr1", 1000, 2000}, true},
		{"chr1:17", interval.Region{"chr1", 17, 17}, true},
		{"HLA-A:5-9", interval.Region{"HLA-A", 5, 9}, true},
		{"chr1", interval.Region{}, false},
		{":1-5", interval.Region{}, false},
		{"chr1:0-5", interval.Region{}, false},
		{"chr1:9-5", interval.Region{}, false},
		{"chr1:a-5", interval.Region{}, false},
		{"", interval.Region{}, false},
	}
	for _, tt := range tests {
		got, err := interval.ParseRegionString(tt.region)
		if !tt.ok {
			expect.True(t, err != nil, "region %q", tt.region)
			continue
		}
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want)
		expect.EQ(t, got.String(), tt.want.String())
	}
}

func TestRegionArithmetic(t *testing.T) {
	r := interval.Region{Chrom: "chr2", Start: 100, Stop: 109}
	expect.EQ(t, r.Len(), 10)
	expect.EQ(t, r.Start0(), 99)
	expect.EQ(t, r.End0(), 109)
	expect.True(t, r.Contains(interval.Region{Chrom: "chr2", Start: 100, Stop: 100}))
	expect.True(t, r.Contains(r))
	expect.False(t, r.Contains(interval.Region{Chrom: "chr2", Start: 99, Stop: 100}))
	expect.False(t, r.Contains(interval.Region{Chrom: "chr3", Start: 101, Stop: 102}))
}
