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

package main

import (
	"context"
	"fmt"

	"github.com/grailbio/ampgeno/encoding/fasta"
	"github.com/grailbio/ampgeno/locus"
	"github.com/grailbio/ampgeno/pipeline"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

type commonFlags struct {
	config *string
	ref    *string
	out    *string
}

func addCommonFlags(cmd *cmdline.Command) commonFlags {
	return commonFlags{
		config: cmd.Flags.String("config", "", "YAML file defining loci, targets and thresholds. Required."),
		ref: cmd.Flags.String("ref", "", `Reference FASTA, possibly compressed.  May be omitted if every target
carries an explicit reference sequence.`),
		out: cmd.Flags.String("out", "", "Output directory. Required."),
	}
}

// load reads the reference and the locus configuration.
func (f commonFlags) load(ctx context.Context) (*locus.Config, fasta.Fasta, error) {
	if *f.config == "" || *f.out == "" {
		return nil, nil, fmt.Errorf("-config and -out are required")
	}
	var (
		ref fasta.Fasta
		err error
	)
	if *f.ref != "" {
		if ref, err = fasta.Load(ctx, *f.ref); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := locus.Load(ctx, *f.config, ref)
	if err != nil {
		return nil, nil, err
	}
	return cfg, ref, nil
}

func newCmdGenotype() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "genotype",
		Short:    "Genotype every sample of a manifest, then merge the cohort",
		ArgsName: "manifest",
	}
	common := addCommonFlags(cmd)
	parallelism := cmd.Flags.Int("parallelism", 0, "Maximum number of samples genotyped at once; 0 = runtime.NumCPU()")
	alignments := cmd.Flags.Bool("alignments", false, "Write a gzipped alignment report per sample")
	runID := cmd.Flags.String("run-id", "", "Identifier recorded in the failure ledger. A random UUID by default")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("genotype takes one manifest argument, but got %v", argv)
		}
		ctx := vcontext.Background()
		cfg, ref, err := common.load(ctx)
		if err != nil {
			return err
		}
		entries, err := pipeline.ReadManifest(ctx, argv[0])
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, ref, *common.out, pipeline.Opts{
			Parallelism:     *parallelism,
			WriteAlignments: *alignments,
			RunID:           *runID,
		})
		c, err := p.Run(ctx, entries)
		if err != nil {
			return err
		}
		log.Printf("wrote calls of %d samples to %s", len(c.Samples), p.CohortPath())
		return nil
	})
	return cmd
}

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Rerun the cohort phase from existing per-sample tables",
		ArgsName: "manifest",
	}
	common := addCommonFlags(cmd)
	runID := cmd.Flags.String("run-id", "", "Identifier recorded in the failure ledger. A random UUID by default")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("merge takes one manifest argument, but got %v", argv)
		}
		ctx := vcontext.Background()
		cfg, ref, err := common.load(ctx)
		if err != nil {
			return err
		}
		entries, err := pipeline.ReadManifest(ctx, argv[0])
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, ref, *common.out, pipeline.Opts{RunID: *runID})
		c, err := p.MergeResults(ctx, pipeline.Samples(entries))
		if err != nil {
			return err
		}
		log.Printf("merged %d samples into %s", len(c.Samples), p.CohortPath())
		return nil
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-amplicon",
			Short:    "Amplicon locus genotyper",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdGenotype(),
				newCmdMerge(),
			},
		})
}
