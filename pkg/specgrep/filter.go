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
	"strings"

	"golang.org/x/exp/slices"
)

// Candidate is a test or suite being considered for a run.
type Candidate struct {
	// Title is the full test or suite name.
	Title string

	// Tags are the tags declared on the candidate itself.
	Tags []string

	// EffectiveTags are the declared tags plus the tags inherited from the
	// enclosing suites.
	EffectiveTags []string

	// RequiredTags are tags that force the candidate into the run when the
	// caller asks for them.
	RequiredTags []string
}

// MatchOptions are the run-wide settings that apply to every candidate.
type MatchOptions struct {
	// GrepUntagged lets candidates without any effective tags pass a non-empty
	// tag filter.
	GrepUntagged bool

	// RequiredTags is the forced-inclusion set. A candidate whose required
	// tags intersect it always runs.
	RequiredTags []string
}

// Reasons reported by decide.
const (
	reasonEmptyFilter   = "empty filter"
	reasonRequiredTag   = "required tag"
	reasonNegatedWord   = "negated word in title"
	reasonInvertedTag   = "inverted tag"
	reasonTitleMismatch = "title does not match"
	reasonTagMismatch   = "tags do not match"
	reasonUntagged      = "untagged"
	reasonMatched       = "matches filter"
)

// ShouldTestRun returns true if the candidate passes the filter. It is a pure
// function and safe for concurrent use.
func ShouldTestRun(p ParsedGrep, c Candidate, opts MatchOptions) bool {
	run, _ := decide(p, c, opts)
	return run
}

// decide returns the run decision and a short reason for it.
func decide(p ParsedGrep, c Candidate, opts MatchOptions) (bool, string) {
	if len(opts.RequiredTags) > 0 && intersects(opts.RequiredTags, c.RequiredTags) {
		return true, reasonRequiredTag
	}

	if containsAnyWord(c.Title, p.title.negatedWords) {
		return false, reasonNegatedWord
	}

	if intersects(p.tags.invertedTags, c.EffectiveTags) {
		return false, reasonInvertedTag
	}

	switch p.Kind() {
	case KindEmpty:
		return true, reasonEmptyFilter
	case KindTitle:
		if !titleMatches(p.title, c.Title) {
			return false, reasonTitleMismatch
		}
		return true, reasonMatched
	case KindTags:
		return tagsMatch(p.tags, c.EffectiveTags, opts.GrepUntagged)
	case KindBoth:
		if !titleMatches(p.title, c.Title) {
			return false, reasonTitleMismatch
		}
		return tagsMatch(p.tags, c.EffectiveTags, opts.GrepUntagged)
	}
	return false, reasonTagMismatch
}

// titleMatches ignores negated words, which decide has already checked.
func titleMatches(t ParsedGrepTitle, title string) bool {
	if len(t.words) == 0 {
		return true
	}
	return containsAnyWord(title, t.words)
}

// tagsMatch ignores inverted tags, which decide has already checked. A
// candidate without effective tags passes a non-empty expression only when
// grepUntagged is set or every group names the untagged sentinel.
func tagsMatch(t ParsedGrepTags, effective []string, grepUntagged bool) (bool, string) {
	if t.IsEmpty() {
		return true, reasonMatched
	}

	if len(effective) == 0 {
		if grepUntagged || (len(t.groups) > 0 && allGroupsName(t.groups, untaggedTag)) {
			return true, reasonUntagged
		}
		return false, reasonUntagged
	}

	for _, group := range t.groups {
		if !groupMatches(group, effective) {
			return false, reasonTagMismatch
		}
	}
	return true, reasonMatched
}

// groupMatches reports whether any alternative of the group is an effective
// tag. The untagged sentinel never matches a literal tag.
func groupMatches(group, effective []string) bool {
	for _, tag := range group {
		if tag != untaggedTag && slices.Contains(effective, tag) {
			return true
		}
	}
	return false
}

// containsAnyWord reports whether any word is a case-insensitive substring of
// s.
func containsAnyWord(s string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}

func allGroupsName(groups [][]string, tag string) bool {
	for _, g := range groups {
		if !slices.Contains(g, tag) {
			return false
		}
	}
	return true
}
