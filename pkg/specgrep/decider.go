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

// Decider decides whether a candidate test or suite runs.
type Decider interface {
	// ShouldRun returns true if the candidate should run.
	ShouldRun(*Candidate) bool
}

var _ Decider = (*DefaultDecider)(nil)

// DefaultDecider applies one parsed filter to every candidate and logs the
// reason for each decision.
type DefaultDecider struct {
	Grep    ParsedGrep
	Options MatchOptions
	Logger  *Logger
}

// NewDecider parses the raw expressions into a decider. The required tags
// default to the positive tags named in the tag expression, so a test that
// requires a tag always runs when that tag is asked for.
func NewDecider(grep, grepTags string, grepUntagged bool, logger *Logger) *DefaultDecider {
	parsed := ParseGrep(grep, grepTags)
	return &DefaultDecider{
		Grep: parsed,
		Options: MatchOptions{
			GrepUntagged: grepUntagged,
			RequiredTags: parsed.Tags().Positive(),
		},
		Logger: logger,
	}
}

// ShouldRun implements Decider.
func (d *DefaultDecider) ShouldRun(c *Candidate) bool {
	run, reason := decide(d.Grep, *c, d.Options)
	if run {
		d.Logger.Debug("should run",
			"title", c.Title,
			"reason", reason,
			"effective_tags", c.EffectiveTags,
			"filter", d.Grep.Kind().String())
		return true
	}

	d.Logger.Debug("should not run",
		"title", c.Title,
		"reason", reason,
		"effective_tags", c.EffectiveTags,
		"filter", d.Grep.Kind().String())
	return false
}
