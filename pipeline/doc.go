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

// Package pipeline drives a genotyping run over a cohort.  Samples listed in
// a manifest are genotyped concurrently by a bounded worker pool; once every
// sample has finished, the cohort phase merges the per-sample tables.  A
// sample that fails is recorded in a failure ledger and never stops the run.
package pipeline
