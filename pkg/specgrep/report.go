// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specgrep

import (
	"context"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/specgrep/internal/worker"
)

// TestReport is the decision for one test.
type TestReport struct {
	Title         string   `json:"title"`
	EffectiveTags []string `json:"effective_tags,omitempty"`
	RequiredTags  []string `json:"required_tags,omitempty"`
	Run           bool     `json:"run"`

	// Burn is how many times a runnable test repeats. It is zero for tests
	// that do not run.
	Burn int `json:"burn,omitempty"`
}

// SpecReport lists the decisions for every test in one spec file.
type SpecReport struct {
	Spec  string        `json:"spec"`
	Tests []*TestReport `json:"tests"`

	// Error is set when the spec could not be read or understood. Such a spec
	// runs in full.
	Error error `json:"-"`
}

// ReportOptions are the inputs of a report.
type ReportOptions struct {
	Grep         string
	GrepTags     string
	GrepUntagged bool

	// GrepBurn is the repeat count for runnable tests. Values below 1 mean 1.
	GrepBurn int

	// OmitFiltered drops the tests that do not run from the report.
	OmitFiltered bool
}

// Reporter lists the run decision of every test in a set of specs.
type Reporter struct {
	resolver    ExtractorResolver
	concurrency int64
	logger      *Logger

	readFile func(string) ([]byte, error)
}

// NewReporter creates a reporter. A concurrency below 1 means one worker per
// CPU.
func NewReporter(resolver ExtractorResolver, concurrency int, logger *Logger) (*Reporter, error) {
	if resolver == nil {
		return nil, fmt.Errorf("missing extractor resolver")
	}
	if logger == nil {
		logger = NewDiscardLogger()
	}

	return &Reporter{
		resolver:    resolver,
		concurrency: int64(concurrency),
		logger:      logger,
		readFile:    os.ReadFile,
	}, nil
}

// Report returns one SpecReport per spec, in the order of specs.
func (r *Reporter) Report(ctx context.Context, specs []string, opts *ReportOptions) ([]*SpecReport, error) {
	decider := NewDecider(opts.Grep, opts.GrepTags, opts.GrepUntagged, r.logger)

	burn := opts.GrepBurn
	if burn < 1 {
		burn = 1
	}

	w := worker.New[*SpecReport](r.concurrency)
	for _, spec := range specs {
		spec := spec
		if err := w.Do(ctx, func(ctx context.Context) (*SpecReport, error) {
			return r.reportSpec(ctx, decider, spec, burn, opts.OmitFiltered), nil
		}); err != nil {
			return nil, fmt.Errorf("failed to report on %s: %w", spec, err)
		}
	}

	results, err := w.Done(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*SpecReport, 0, len(results))
	for _, res := range results {
		if res.Error != nil {
			return nil, res.Error
		}
		reports = append(reports, res.Value)
	}
	return reports, nil
}

func (r *Reporter) reportSpec(ctx context.Context, d *DefaultDecider, spec string, burn int, omitFiltered bool) *SpecReport {
	report := &SpecReport{Spec: spec}

	src, err := r.readFile(spec)
	if err != nil {
		report.Error = fmt.Errorf("failed to read spec: %w", err)
		r.logger.Error("could not read spec, it will run in full", "spec", spec, "error", err)
		return report
	}

	extractor := r.resolver.ExtractorFor(spec)
	if extractor == nil {
		report.Error = fmt.Errorf("no extractor for %s", spec)
		return report
	}

	tags, err := extractor.ExtractEffectiveTags(ctx, src)
	if err != nil {
		report.Error = err
		r.logger.Error("could not determine test names, it will run in full", "spec", spec, "error", err)
		return report
	}

	for _, title := range sortedTitles(tags) {
		t := tags[title]
		if t == nil {
			t = &TestTags{}
		}

		tr := &TestReport{
			Title:         title,
			EffectiveTags: t.EffectiveTags,
			RequiredTags:  t.RequiredTags,
			Run: d.ShouldRun(&Candidate{
				Title:         title,
				Tags:          t.Tags,
				EffectiveTags: t.EffectiveTags,
				RequiredTags:  t.RequiredTags,
			}),
		}
		if tr.Run {
			tr.Burn = burn
		} else if omitFiltered {
			continue
		}
		report.Tests = append(report.Tests, tr)
	}
	return report
}
