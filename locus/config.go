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

package locus

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/grailbio/ampgeno/encoding/fasta"
	"github.com/grailbio/ampgeno/interval"
	"github.com/grailbio/ampgeno/sequtil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

// EnvPrefix prefixes the environment variables that override Thresholds,
// e.g. GENOTYPER_MIN_CALL_READS.
const EnvPrefix = "GENOTYPER"

// Thresholds holds the numeric parameters of placement and calling.
type Thresholds struct {
	// MinCallReads and MinAlleleReads form the stringent calling profile.
	MinCallReads   int `yaml:"minCallReads" envconfig:"MIN_CALL_READS"`
	MinAlleleReads int `yaml:"minAlleleReads" envconfig:"MIN_ALLELE_READS"`
	// The lenient profile is tried only when the stringent call is missing.
	LenientMinCallReads   int     `yaml:"lenientMinCallReads" envconfig:"LENIENT_MIN_CALL_READS"`
	LenientMinAlleleReads int     `yaml:"lenientMinAlleleReads" envconfig:"LENIENT_MIN_ALLELE_READS"`
	MinAlleleProp         float64 `yaml:"minAlleleProp" envconfig:"MIN_ALLELE_PROP"`
	MinBaseQual           int     `yaml:"minBaseQual" envconfig:"MIN_BASE_QUAL"`
	MaxIndelSize          int     `yaml:"maxIndelSize" envconfig:"MAX_INDEL_SIZE"`
	MaxReadMismatches     int     `yaml:"maxReadMismatches" envconfig:"MAX_READ_MISMATCHES"`
	// MinAltReads is the cohort filter's read threshold: an allele survives
	// if some sample has at least this many reads of it.
	MinAltReads int `yaml:"minAltReads" envconfig:"MIN_ALT_READS"`
}

// DefaultThresholds are used for any value the configuration omits.
var DefaultThresholds = Thresholds{
	MinCallReads:          5,
	MinAlleleReads:        2,
	LenientMinCallReads:   2,
	LenientMinAlleleReads: 2,
	MinAlleleProp:         0.05,
	MinBaseQual:           20,
	MaxIndelSize:          10,
	MaxReadMismatches:     10,
	MinAltReads:           10,
}

// Validate checks that every threshold is in range.
func (t Thresholds) Validate() error {
	switch {
	case t.MinCallReads < 1 || t.LenientMinCallReads < 1:
		return errors.E(errors.Invalid, "min call reads must be positive")
	case t.MinAlleleReads < 1 || t.LenientMinAlleleReads < 1:
		return errors.E(errors.Invalid, "min allele reads must be positive")
	case t.MinAlleleProp <= 0 || t.MinAlleleProp >= 1:
		return errors.E(errors.Invalid, fmt.Sprintf("min allele proportion %v not in (0, 1)", t.MinAlleleProp))
	case t.MinBaseQual < 0:
		return errors.E(errors.Invalid, "min base quality must not be negative")
	case t.MaxIndelSize < 0:
		return errors.E(errors.Invalid, "max indel size must not be negative")
	case t.MaxReadMismatches < 0:
		return errors.E(errors.Invalid, "max read mismatches must not be negative")
	case t.MinAltReads < 1:
		return errors.E(errors.Invalid, "min alt reads must be positive")
	}
	return nil
}

// Config is the complete, validated description of a run.
type Config struct {
	Thresholds Thresholds
	Loci       []*Locus

	targets map[string]*Target
}

// Targets returns all targets, in configuration order.
func (c *Config) Targets() []*Target {
	var targets []*Target
	for _, l := range c.Loci {
		targets = append(targets, l.Targets...)
	}
	return targets
}

// Target looks up a target by name.  It returns nil if there is no such
// target.
func (c *Config) Target(name string) *Target {
	return c.targets[name]
}

// Locus looks up a locus by name.
func (c *Config) Locus(name string) *Locus {
	for _, l := range c.Loci {
		if l.Name == name {
			return l
		}
	}
	return nil
}

type yamlConfig struct {
	Thresholds Thresholds  `yaml:"thresholds"`
	Loci       []yamlLocus `yaml:"loci"`
}

type yamlLocus struct {
	Name            string         `yaml:"name"`
	Regions         []string       `yaml:"regions"`
	IncludeUnmapped bool           `yaml:"includeUnmapped"`
	AnchorsOnly     bool           `yaml:"anchorsOnly"`
	StrandBias      yamlStrandBias `yaml:"strandBias"`
	Anchors         []yamlAnchor   `yaml:"anchors"`
	Targets         []yamlTarget   `yaml:"targets"`
}

type yamlStrandBias struct {
	Enabled       bool    `yaml:"enabled"`
	MinProportion float64 `yaml:"minProportion"`
}

type yamlAnchor struct {
	Pos   int    `yaml:"pos"`
	Motif string `yaml:"motif"`
}

type yamlTarget struct {
	Name      string   `yaml:"name"`
	Regions   []string `yaml:"regions"`
	Reverse   bool     `yaml:"reverse"`
	Translate bool     `yaml:"translate"`
	// Reference overrides the reference sequence sliced from the FASTA.  It is
	// given in forward-strand orientation.
	Reference string `yaml:"reference"`
}

// Load reads the YAML configuration at path, applies environment overrides
// to its thresholds, and resolves target reference sequences against ref.
// ref may be nil if every target carries an explicit reference.
func Load(ctx context.Context, path string, ref fasta.Fasta) (cfg *Config, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	if cfg, err = Parse(in.Reader(ctx), ref); err != nil {
		return nil, errors.E(err, path)
	}
	if err = ApplyEnv(&cfg.Thresholds); err != nil {
		return nil, err
	}
	log.Printf("locus: loaded %d loci, %d targets from %s", len(cfg.Loci), len(cfg.targets), path)
	return cfg, nil
}

// ApplyEnv overrides thresholds from GENOTYPER_* environment variables and
// revalidates them.
func ApplyEnv(t *Thresholds) error {
	if err := envconfig.Process(EnvPrefix, t); err != nil {
		return errors.E(errors.Invalid, err, "environment thresholds")
	}
	return t.Validate()
}

// Parse decodes and validates a YAML configuration.  Unknown fields are
// rejected.
func Parse(r io.Reader, ref fasta.Fasta) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw := yamlConfig{Thresholds: DefaultThresholds}
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, errors.E(errors.Invalid, err, "parse config")
	}
	if err := raw.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if len(raw.Loci) == 0 {
		return nil, errors.E(errors.Invalid, "no loci configured")
	}
	cfg := &Config{
		Thresholds: raw.Thresholds,
		targets:    make(map[string]*Target),
	}
	for _, rl := range raw.Loci {
		if cfg.Locus(rl.Name) != nil {
			return nil, errors.E(errors.Invalid, "duplicate locus", rl.Name)
		}
		l, err := newLocus(rl)
		if err != nil {
			return nil, err
		}
		for _, rt := range rl.Targets {
			if _, ok := cfg.targets[rt.Name]; ok {
				return nil, errors.E(errors.Invalid, "duplicate target", rt.Name)
			}
			t, err := newTarget(l, rt, ref)
			if err != nil {
				return nil, err
			}
			l.Targets = append(l.Targets, t)
			cfg.targets[t.Name] = t
		}
		cfg.Loci = append(cfg.Loci, l)
	}
	return cfg, nil
}

func parseRegions(owner string, strs []string) ([]interval.Region, error) {
	if len(strs) == 0 {
		return nil, errors.E(errors.Invalid, owner, "has no regions")
	}
	regions := make([]interval.Region, len(strs))
	for i, s := range strs {
		r, err := interval.ParseRegionString(s)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, owner)
		}
		if i > 0 && r.Chrom != regions[0].Chrom {
			return nil, errors.E(errors.Invalid, owner, "spans chromosomes", regions[0].Chrom, r.Chrom)
		}
		regions[i] = r
	}
	return regions, nil
}

func newLocus(rl yamlLocus) (*Locus, error) {
	if rl.Name == "" {
		return nil, errors.E(errors.Invalid, "locus without a name")
	}
	regions, err := parseRegions("locus "+rl.Name, rl.Regions)
	if err != nil {
		return nil, err
	}
	l := &Locus{
		Name:            rl.Name,
		Regions:         regions,
		IncludeUnmapped: rl.IncludeUnmapped,
		AnchorsOnly:     rl.AnchorsOnly,
		StrandBias: StrandBiasPolicy{
			Enabled:       rl.StrandBias.Enabled,
			MinProportion: rl.StrandBias.MinProportion,
		},
	}
	if p := l.StrandBias.MinProportion; p < 0 || p > 0.5 {
		return nil, errors.E(errors.Invalid, "locus", rl.Name, fmt.Sprintf("strand bias proportion %v not in [0, 0.5]", p))
	}
	for _, ra := range rl.Anchors {
		a, err := NewAnchor(ra.Pos, ra.Motif)
		if err != nil {
			return nil, errors.E(err, "locus", rl.Name)
		}
		l.Anchors = append(l.Anchors, a)
	}
	if (l.AnchorsOnly || l.IncludeUnmapped) && len(l.Anchors) == 0 {
		return nil, errors.E(errors.Invalid, "locus", rl.Name, "needs anchors to place reads without an alignment")
	}
	if len(rl.Targets) == 0 {
		return nil, errors.E(errors.Invalid, "locus", rl.Name, "has no targets")
	}
	return l, nil
}

func newTarget(l *Locus, rt yamlTarget, ref fasta.Fasta) (*Target, error) {
	if rt.Name == "" {
		return nil, errors.E(errors.Invalid, "locus", l.Name, "has a target without a name")
	}
	regions, err := parseRegions("target "+rt.Name, rt.Regions)
	if err != nil {
		return nil, err
	}
	if regions[0].Chrom != l.Chrom() {
		return nil, errors.E(errors.Invalid, "target", rt.Name, "is not on the chromosome of locus", l.Name)
	}
	t := &Target{
		Name:      rt.Name,
		Locus:     l.Name,
		Regions:   regions,
		Reverse:   rt.Reverse,
		Translate: rt.Translate,
	}
	seq := rt.Reference
	if seq == "" {
		if ref == nil {
			return nil, errors.E(errors.Invalid, "target", rt.Name, "has no reference sequence")
		}
		for _, r := range regions {
			s, err := fasta.GetRegion(ref, r)
			if err != nil {
				return nil, errors.E(errors.Invalid, err, "target", rt.Name)
			}
			seq += s
		}
	}
	if len(seq) != t.Len() {
		return nil, errors.E(errors.Invalid, "target", rt.Name,
			fmt.Sprintf("reference has %d bases, regions cover %d", len(seq), t.Len()))
	}
	seq = strings.ToUpper(seq)
	if t.Reverse {
		seq = sequtil.ReverseComp8(seq)
	}
	t.RefSeq = seq
	return t, nil
}
