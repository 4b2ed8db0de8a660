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

import "math"

// propEpsilon lets an allele exactly at the minimum proportion pass despite
// floating point rounding.
const propEpsilon = 1e-6

// Genotyper decides whether an allele's read count is large enough, relative
// to the target's total, for the allele to be real.
type Genotyper struct {
	// MinProp is the minimum fraction of the target's reads.
	MinProp float64
	// lowCoverage is the total at or below which a flat minimum applies.
	lowCoverage int
}

// NewGenotyper returns a Genotyper for proportion minProp, which must be in
// (0, 1).
func NewGenotyper(minProp float64) Genotyper {
	return Genotyper{
		MinProp:     minProp,
		lowCoverage: int(math.Floor(2/minProp + propEpsilon)),
	}
}

// MinReads is the smallest valid allele count when the target has total
// reads.
func (g Genotyper) MinReads(total int) int {
	if total <= g.lowCoverage {
		return 2
	}
	return 1 + int(math.Floor(float64(total)*(g.MinProp-propEpsilon)))
}

// Valid reports whether count reads out of total support a real allele.
// For a fixed total, if count is valid then so is every larger count.
func (g Genotyper) Valid(count, total int) bool {
	return count >= g.MinReads(total)
}
