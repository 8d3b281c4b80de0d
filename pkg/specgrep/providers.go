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
)

// TestNames are the suite and test names declared in one spec file.
type TestNames struct {
	SuiteNames []string
	TestNames  []string
}

// All returns the suite names followed by the test names.
func (n *TestNames) All() []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.SuiteNames)+len(n.TestNames))
	out = append(out, n.SuiteNames...)
	return append(out, n.TestNames...)
}

// TestTags are the tags that apply to one test.
type TestTags struct {
	Tags          []string
	EffectiveTags []string
	RequiredTags  []string
}

// NameExtractor finds suite and test names in spec source text.
type NameExtractor interface {
	ExtractTestNames(ctx context.Context, src []byte) (*TestNames, error)
}

// TagExtractor finds the effective tags of every test in spec source text,
// keyed by the full test title.
type TagExtractor interface {
	ExtractEffectiveTags(ctx context.Context, src []byte) (map[string]*TestTags, error)
}

// Extractor is both a NameExtractor and a TagExtractor.
type Extractor interface {
	NameExtractor
	TagExtractor
}

// ExtractorResolver returns the extractor to use for a spec path.
type ExtractorResolver interface {
	ExtractorFor(path string) Extractor
}

// ExtractorResolverFunc is a function that satisfies ExtractorResolver.
type ExtractorResolverFunc func(path string) Extractor

// ExtractorFor implements ExtractorResolver.
func (f ExtractorResolverFunc) ExtractorFor(path string) Extractor {
	return f(path)
}

// StaticResolver returns an ExtractorResolver that uses e for every path.
func StaticResolver(e Extractor) ExtractorResolverFunc {
	return func(string) Extractor {
		return e
	}
}

// ParseError is returned by extractors when the source cannot be understood.
type ParseError struct {
	Line   int
	Column int
	Reason string
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Reason)
	}
	return "parse error: " + e.Reason
}
