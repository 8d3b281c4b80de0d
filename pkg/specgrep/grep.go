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

// Package specgrep selects which tests and spec files run for a grep and tag
// expression.
package specgrep

import (
	"strings"

	"golang.org/x/exp/slices"
)

const (
	titleSeparator          = ";"
	tagGroupSeparator       = "+"
	tagAlternativeSeparator = ","
	negationPrefix          = "-"
	untaggedTag             = "untagged"
)

// Kind identifies which parts of a ParsedGrep carry content.
type Kind uint8

// Kinds of ParsedGrep.
const (
	KindEmpty Kind = iota
	KindTitle
	KindTags
	KindBoth
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindTags:
		return "tags"
	case KindBoth:
		return "both"
	default:
		return "empty"
	}
}

// ParsedGrepTitle is a parsed title expression. The zero value matches every
// title.
type ParsedGrepTitle struct {
	words        []string
	negatedWords []string
}

// Words returns the substrings of which at least one must be in the title.
func (t ParsedGrepTitle) Words() []string {
	return slices.Clone(t.words)
}

// NegatedWords returns the substrings that exclude a title.
func (t ParsedGrepTitle) NegatedWords() []string {
	return slices.Clone(t.negatedWords)
}

// IsEmpty returns true if the expression has neither words nor negated words.
func (t ParsedGrepTitle) IsEmpty() bool {
	return len(t.words) == 0 && len(t.negatedWords) == 0
}

// ParsedGrepTags is a parsed tag expression: an AND of OR groups plus a global
// list of inverted tags. The zero value matches every tag set.
type ParsedGrepTags struct {
	groups       [][]string
	invertedTags []string
}

// Groups returns the AND groups. Each group holds its OR alternatives.
func (t ParsedGrepTags) Groups() [][]string {
	out := make([][]string, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, slices.Clone(g))
	}
	return out
}

// InvertedTags returns the tags that exclude a candidate.
func (t ParsedGrepTags) InvertedTags() []string {
	return slices.Clone(t.invertedTags)
}

// IsEmpty returns true if the expression has neither groups nor inverted tags.
func (t ParsedGrepTags) IsEmpty() bool {
	return len(t.groups) == 0 && len(t.invertedTags) == 0
}

// Positive returns every alternative named in a group, in order, excluding the
// untagged sentinel.
func (t ParsedGrepTags) Positive() []string {
	var out []string
	for _, g := range t.groups {
		for _, tag := range g {
			if tag != untaggedTag {
				out = append(out, tag)
			}
		}
	}
	return out
}

// ParsedGrep is the filter handed to the evaluator.
type ParsedGrep struct {
	title ParsedGrepTitle
	tags  ParsedGrepTags
}

// Title returns the title part of the filter.
func (p ParsedGrep) Title() ParsedGrepTitle {
	return p.title
}

// Tags returns the tag part of the filter.
func (p ParsedGrep) Tags() ParsedGrepTags {
	return p.tags
}

// Kind reports which parts of the filter carry content.
func (p ParsedGrep) Kind() Kind {
	switch hasTitle, hasTags := !p.title.IsEmpty(), !p.tags.IsEmpty(); {
	case hasTitle && hasTags:
		return KindBoth
	case hasTitle:
		return KindTitle
	case hasTags:
		return KindTags
	default:
		return KindEmpty
	}
}

// ParseGrep parses a raw title expression and a raw tag expression. Either may
// be empty. It never fails: malformed fragments are skipped.
func ParseGrep(title, tags string) ParsedGrep {
	return ParsedGrep{
		title: ParseTitleGrep(title),
		tags:  ParseTagsGrep(tags),
	}
}

// ParseTitleGrep parses a semicolon separated list of title substrings. A
// leading "-" negates a substring.
func ParseTitleGrep(s string) ParsedGrepTitle {
	var t ParsedGrepTitle
	for _, token := range strings.Split(s, titleSeparator) {
		word, negated, ok := parseToken(token)
		if !ok {
			continue
		}
		if negated {
			t.negatedWords = append(t.negatedWords, word)
		} else {
			t.words = append(t.words, word)
		}
	}
	return t
}

// ParseTagsGrep parses a tag expression. Groups are joined with "+" and all
// must match; alternatives inside a group are joined with "," and any may
// match. A leading "-" inverts a tag for the whole expression, not just its
// group, so "a+-b,c" excludes b everywhere.
func ParseTagsGrep(s string) ParsedGrepTags {
	var t ParsedGrepTags
	for _, rawGroup := range strings.Split(s, tagGroupSeparator) {
		var group []string
		for _, alt := range strings.Split(rawGroup, tagAlternativeSeparator) {
			tag, negated, ok := parseToken(alt)
			if !ok {
				continue
			}
			if negated {
				t.invertedTags = append(t.invertedTags, tag)
				continue
			}
			group = append(group, tag)
		}
		if len(group) > 0 {
			t.groups = append(t.groups, group)
		}
	}
	return t
}

// parseToken trims the token and strips a negation prefix. It returns false
// when nothing is left.
func parseToken(token string) (string, bool, bool) {
	token = strings.TrimSpace(token)
	negated := strings.HasPrefix(token, negationPrefix)
	if negated {
		token = strings.TrimSpace(strings.TrimPrefix(token, negationPrefix))
	}
	if token == "" {
		return "", false, false
	}
	return token, negated, true
}
