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

// Package mocha finds the suites, tests and tags declared in Mocha-style spec
// files (describe, context, it, specify) using tree-sitter.
package mocha

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/GoogleCloudPlatform/specgrep/pkg/specgrep"
)

var (
	suiteFuncs = map[string]bool{
		"describe":  true,
		"context":   true,
		"suite":     true,
		"xdescribe": true,
		"xcontext":  true,
	}

	testFuncs = map[string]bool{
		"it":       true,
		"specify":  true,
		"test":     true,
		"xit":      true,
		"xspecify": true,
	}

	// modifiers are the members that keep the meaning of the call, such as
	// it.only or describe.skip.
	modifiers = map[string]bool{
		"only": true,
		"skip": true,
	}
)

const (
	tagsKey         = "tags"
	requiredTagsKey = "requiredTags"
)

var _ specgrep.Extractor = (*Extractor)(nil)

// Extractor implements specgrep.Extractor for one source language.
type Extractor struct {
	lang *sitter.Language
}

// New creates an extractor for the given tree-sitter language.
func New(lang *sitter.Language) *Extractor {
	return &Extractor{lang: lang}
}

// ForPath returns the extractor matching the file extension of path.
func ForPath(path string) *Extractor {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return New(tsx.GetLanguage())
	case ".ts", ".mts", ".cts":
		return New(typescript.GetLanguage())
	default:
		return New(javascript.GetLanguage())
	}
}

// Resolver picks the extractor for each spec by file extension.
func Resolver() specgrep.ExtractorResolverFunc {
	return func(path string) specgrep.Extractor {
		return ForPath(path)
	}
}

// ExtractTestNames implements specgrep.NameExtractor.
func (e *Extractor) ExtractTestNames(ctx context.Context, src []byte) (*specgrep.TestNames, error) {
	c, err := e.collect(ctx, src)
	if err != nil {
		return nil, err
	}
	return &c.names, nil
}

// ExtractEffectiveTags implements specgrep.TagExtractor.
func (e *Extractor) ExtractEffectiveTags(ctx context.Context, src []byte) (map[string]*specgrep.TestTags, error) {
	c, err := e.collect(ctx, src)
	if err != nil {
		return nil, err
	}
	return c.tests, nil
}

func (e *Extractor) collect(ctx context.Context, src []byte) (*collector, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse spec source")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root)
	}

	c := &collector{
		src:   src,
		tests: make(map[string]*specgrep.TestTags),
	}
	c.walk(root, &scope{})
	return c, nil
}

// syntaxError reports the position of the first broken node.
func syntaxError(root *sitter.Node) error {
	n := root
	for {
		var next *sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == "ERROR" || child.IsMissing() {
				p := child.StartPoint()
				return &specgrep.ParseError{
					Line:   int(p.Row) + 1,
					Column: int(p.Column) + 1,
					Reason: "unexpected " + describeNode(child),
				}
			}
			if next == nil && child.HasError() {
				next = child
			}
		}
		if next == nil {
			return &specgrep.ParseError{Reason: "invalid syntax"}
		}
		n = next
	}
}

func describeNode(n *sitter.Node) string {
	if n.IsMissing() {
		return "end of input, missing " + n.Type()
	}
	return "token"
}

// scope is the suite chain around a node.
type scope struct {
	titles   []string
	tags     []string
	required []string
}

func (s *scope) child(title string, tags, required []string) *scope {
	next := &scope{
		titles:   append(append([]string(nil), s.titles...), title),
		tags:     union(s.tags, tags),
		required: union(s.required, required),
	}
	if title == "" {
		next.titles = s.titles
	}
	return next
}

type collector struct {
	src   []byte
	names specgrep.TestNames
	tests map[string]*specgrep.TestTags
}

func (c *collector) walk(n *sitter.Node, s *scope) {
	if n.Type() == "call_expression" {
		switch name := c.calleeName(n); {
		case suiteFuncs[name]:
			c.visitSuite(n, s)
			return
		case testFuncs[name]:
			c.visitTest(n, s)
			return
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.walk(n.NamedChild(i), s)
	}
}

func (c *collector) visitSuite(n *sitter.Node, s *scope) {
	args := c.arguments(n)
	title, tags, required := c.declaration(args)
	if title != "" {
		c.names.SuiteNames = append(c.names.SuiteNames, title)
	}

	inner := s.child(title, tags, required)
	for _, arg := range args {
		c.walk(arg, inner)
	}
}

func (c *collector) visitTest(n *sitter.Node, s *scope) {
	title, tags, required := c.declaration(c.arguments(n))
	if title == "" {
		return
	}
	c.names.TestNames = append(c.names.TestNames, title)

	full := strings.Join(append(append([]string(nil), s.titles...), title), " ")
	t := &specgrep.TestTags{
		Tags:          tags,
		EffectiveTags: union(s.tags, tags),
		RequiredTags:  union(s.required, required),
	}

	// Tests sharing a full title are one entry carrying the tags of all of them.
	if prev, ok := c.tests[full]; ok {
		t = &specgrep.TestTags{
			Tags:          union(prev.Tags, t.Tags),
			EffectiveTags: union(prev.EffectiveTags, t.EffectiveTags),
			RequiredTags:  union(prev.RequiredTags, t.RequiredTags),
		}
	}
	c.tests[full] = t
}

// calleeName returns "describe" for describe(...), describe.only(...) and
// describe.skip(...).
func (c *collector) calleeName(n *sitter.Node) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}

	switch fn.Type() {
	case "identifier":
		return fn.Content(c.src)
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj == nil || prop == nil || obj.Type() != "identifier" {
			return ""
		}
		if modifiers[prop.Content(c.src)] {
			return obj.Content(c.src)
		}
	}
	return ""
}

func (c *collector) arguments(n *sitter.Node) []*sitter.Node {
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}

	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "comment" {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// declaration reads the title and the config object of a describe or it
// call. Titles that are not literals are returned empty.
func (c *collector) declaration(args []*sitter.Node) (string, []string, []string) {
	if len(args) == 0 {
		return "", nil, nil
	}

	title, _ := c.literal(args[0])

	var tags, required []string
	for _, arg := range args[1:] {
		if arg.Type() != "object" {
			continue
		}
		for i := 0; i < int(arg.NamedChildCount()); i++ {
			pair := arg.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			key := pair.ChildByFieldName("key")
			value := pair.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}

			switch c.key(key) {
			case tagsKey:
				tags = append(tags, c.literals(value)...)
			case requiredTagsKey:
				required = append(required, c.literals(value)...)
			}
		}
	}
	return title, tags, required
}

func (c *collector) key(n *sitter.Node) string {
	if s, ok := c.literal(n); ok {
		return s
	}
	return n.Content(c.src)
}

// literals returns the strings of a string literal or an array of them.
func (c *collector) literals(n *sitter.Node) []string {
	if s, ok := c.literal(n); ok {
		return []string{s}
	}
	if n.Type() != "array" {
		return nil
	}

	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if s, ok := c.literal(n.NamedChild(i)); ok {
			out = append(out, s)
		}
	}
	return out
}

// literal returns the value of a string or template literal.
func (c *collector) literal(n *sitter.Node) (string, bool) {
	raw := n.Content(c.src)
	switch n.Type() {
	case "string":
		if len(raw) < 2 {
			return "", false
		}
		return unescape(raw[1 : len(raw)-1]), true
	case "template_string":
		if len(raw) < 2 {
			return "", false
		}
		return raw[1 : len(raw)-1], true
	}
	return "", false
}

var unescaper = strings.NewReplacer(`\'`, `'`, `\"`, `"`, `\\`, `\`)

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return unescaper.Replace(s)
}

// union returns a followed by the members of b not in a.
func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
