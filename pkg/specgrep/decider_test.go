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
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewDecider(t *testing.T) {
	t.Parallel()

	d := NewDecider("login", "@smoke,untagged+@fast+-@slow", true, nil)
	if got, want := d.Grep.Kind(), KindBoth; got != want {
		t.Errorf("expected %s to be %s", got, want)
	}
	if !d.Options.GrepUntagged {
		t.Errorf("expected grep untagged to be set")
	}
	if diff := cmp.Diff([]string{"@smoke", "@fast"}, d.Options.RequiredTags); diff != "" {
		t.Errorf("required tags (-want, +got):\n%s", diff)
	}
}

func TestDefaultDecider_ShouldRun(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		grep   string
		tags   string
		cand   *Candidate
		exp    bool
		reason string
	}{
		{
			name:   "matches",
			tags:   "@smoke",
			cand:   &Candidate{Title: "a", EffectiveTags: []string{"@smoke"}},
			exp:    true,
			reason: reasonMatched,
		},
		{
			name:   "inverted",
			tags:   "-@slow",
			cand:   &Candidate{Title: "a", EffectiveTags: []string{"@slow"}},
			exp:    false,
			reason: reasonInvertedTag,
		},
		{
			name:   "negated",
			grep:   "-a",
			cand:   &Candidate{Title: "a"},
			exp:    false,
			reason: reasonNegatedWord,
		},
		{
			name:   "required",
			tags:   "@critical",
			cand:   &Candidate{Title: "a", EffectiveTags: []string{"@other"}, RequiredTags: []string{"@critical"}},
			exp:    true,
			reason: reasonRequiredTag,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			logger, err := NewLogger("debug", &out, &out)
			if err != nil {
				t.Fatal(err)
			}

			d := NewDecider(tc.grep, tc.tags, false, logger)
			if got, want := d.ShouldRun(tc.cand), tc.exp; got != want {
				t.Errorf("expected %t to be %t", got, want)
			}
			if got, want := out.String(), `"reason":"`+tc.reason+`"`; !strings.Contains(got, want) {
				t.Errorf("expected %q to contain %q", got, want)
			}
		})
	}
}

func TestDefaultDecider_NilLogger(t *testing.T) {
	t.Parallel()

	d := &DefaultDecider{Grep: ParseGrep("a", "")}
	if !d.ShouldRun(&Candidate{Title: "a"}) {
		t.Errorf("expected candidate to run")
	}
}
