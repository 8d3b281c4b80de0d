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
	"runtime"
	"sort"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
)

// Selector decides which spec files to keep for a run.
type Selector struct {
	resolver    ExtractorResolver
	concurrency int
	logger      *Logger

	readFile func(string) ([]byte, error)
}

// NewSelector creates a new selector with the given extractors and
// concurrency. A concurrency below 1 means one worker per CPU.
func NewSelector(resolver ExtractorResolver, concurrency int, logger *Logger) (*Selector, error) {
	if resolver == nil {
		return nil, fmt.Errorf("missing extractor resolver")
	}
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}
	if logger == nil {
		logger = NewDiscardLogger()
	}

	return &Selector{
		resolver:    resolver,
		concurrency: concurrency,
		logger:      logger,
		readFile:    os.ReadFile,
	}, nil
}

// SelectOptions are the inputs of a selection.
type SelectOptions struct {
	Grep         string
	GrepTags     string
	GrepUntagged bool

	SpecPattern        []string
	ExcludeSpecPattern []string
	IntegrationFolder  string
}

// Selection is the outcome of a selection.
type Selection struct {
	// Specs are the spec files that should run.
	Specs []string

	// Discovered are all spec files found before filtering.
	Discovered []string

	// Filtered is true if a grep or tag expression was applied.
	Filtered bool

	// FellBack is true if the filter eliminated every spec and all of them
	// were kept instead.
	FellBack bool

	// FailedOpen are the specs kept because they could not be read or
	// understood.
	FailedOpen []string

	// Diagnostics holds one error per spec in FailedOpen. It is nil when
	// FailedOpen is empty.
	Diagnostics error
}

// Select discovers the spec files and filters them.
func (s *Selector) Select(ctx context.Context, opts *SelectOptions) (*Selection, error) {
	folder := opts.IntegrationFolder
	if folder == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		folder = wd
	}

	specs, err := Discover(folder, opts.SpecPattern, opts.ExcludeSpecPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to discover specs: %w", err)
	}

	s.logger.Debug("found spec files",
		"integration_folder", folder,
		"count", len(specs))

	return s.Filter(ctx, specs, opts)
}

// Filter keeps the specs that contain at least one test or suite passing the
// filter. Specs that cannot be read or parsed are always kept. If the filter
// would keep nothing, every spec is kept.
func (s *Selector) Filter(ctx context.Context, specs []string, opts *SelectOptions) (*Selection, error) {
	sel := &Selection{
		Discovered: specs,
		Specs:      specs,
	}

	decider := NewDecider(opts.Grep, opts.GrepTags, opts.GrepUntagged, s.logger)
	kind := decider.Grep.Kind()
	if kind == KindEmpty {
		return sel, nil
	}
	sel.Filtered = true

	if kind == KindTitle {
		s.logger.Info("filtering specs using title", "grep", opts.Grep)
	} else {
		s.logger.Info("filtering specs using tags", "grep", opts.Grep, "grep_tags", opts.GrepTags)
	}

	// Create a worker pool for parallel reads
	pool := workerpool.New(s.concurrency)

	keep := make([]bool, len(specs))
	failed := make([]bool, len(specs))
	var errs *multierror.Error
	var errsLock sync.Mutex

	for i, spec := range specs {
		i, spec := i, spec
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}

			ok, err := s.matchSpec(ctx, decider, spec)
			if err != nil {
				s.logger.Error("could not determine test names, will run it to let the grep filter the tests",
					"spec", spec,
					"error", err)

				errsLock.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", spec, err))
				errsLock.Unlock()

				failed[i] = true
				keep[i] = true
				return
			}
			keep[i] = ok
		})
	}

	// Wait for everything to finish
	pool.StopWait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(specs))
	for i, spec := range specs {
		if failed[i] {
			sel.FailedOpen = append(sel.FailedOpen, spec)
		}
		if keep[i] {
			selected = append(selected, spec)
		}
	}
	if errs != nil {
		sel.Diagnostics = errs.ErrorOrNil()
	}

	s.logger.Debug("filtered specs",
		"grep", opts.Grep,
		"grep_tags", opts.GrepTags,
		"kept", len(selected),
		"total", len(specs))

	if len(selected) == 0 && len(specs) > 0 {
		// Filtering everything out almost always means a bad expression.
		s.logger.Warn("grep and/or grepTags has eliminated all specs, will leave all specs to run to filter at run-time",
			"grep", opts.Grep,
			"grep_tags", opts.GrepTags)
		sel.FellBack = true
		return sel, nil
	}

	sel.Specs = selected
	return sel, nil
}

// matchSpec returns true if any test in the spec passes the decider.
func (s *Selector) matchSpec(ctx context.Context, d *DefaultDecider, spec string) (bool, error) {
	src, err := s.readFile(spec)
	if err != nil {
		return false, fmt.Errorf("failed to read spec: %w", err)
	}

	extractor := s.resolver.ExtractorFor(spec)
	if extractor == nil {
		return false, fmt.Errorf("no extractor for %s", spec)
	}

	// Title-only filters look at suite and test names individually. Anything
	// involving tags needs the effective tags of each full test title.
	if d.Grep.Kind() == KindTitle {
		names, err := extractor.ExtractTestNames(ctx, src)
		if err != nil {
			return false, err
		}
		for _, name := range names.All() {
			if d.ShouldRun(&Candidate{Title: name}) {
				return true, nil
			}
		}
		return false, nil
	}

	tags, err := extractor.ExtractEffectiveTags(ctx, src)
	if err != nil {
		return false, err
	}
	for _, title := range sortedTitles(tags) {
		t := tags[title]
		if t == nil {
			t = &TestTags{}
		}
		if d.ShouldRun(&Candidate{
			Title:         title,
			Tags:          t.Tags,
			EffectiveTags: t.EffectiveTags,
			RequiredTags:  t.RequiredTags,
		}) {
			return true, nil
		}
	}
	return false, nil
}

func sortedTitles(m map[string]*TestTags) []string {
	titles := make([]string, 0, len(m))
	for k := range m {
		titles = append(titles, k)
	}
	sort.Strings(titles)
	return titles
}
