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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []string{
		"cypress/e2e/a.cy.js",
		"cypress/e2e/b.cy.ts",
		"cypress/e2e/nested/c.cy.js",
		"cypress/e2e/d.hot-update.js",
		"cypress/support/e2e.js",
		"node_modules/x/e.cy.js",
	}
	for _, f := range files {
		p := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	abs := func(names ...string) []string {
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, filepath.Join(dir, filepath.FromSlash(n)))
		}
		return out
	}

	cases := []struct {
		name     string
		patterns []string
		excludes []string
		exp      []string
		err      bool
	}{
		{
			name:     "no_patterns",
			patterns: nil,
			exp:      nil,
		},
		{
			name:     "doublestar",
			patterns: []string{"cypress/e2e/**/*.cy.{js,ts}"},
			exp:      abs("cypress/e2e/a.cy.js", "cypress/e2e/b.cy.ts", "cypress/e2e/nested/c.cy.js"),
		},
		{
			name:     "pattern_order_and_dedup",
			patterns: []string{"cypress/e2e/b.cy.ts", "cypress/e2e/*.cy.*"},
			exp:      abs("cypress/e2e/b.cy.ts", "cypress/e2e/a.cy.js"),
		},
		{
			name:     "basename_exclude",
			patterns: []string{"cypress/e2e/*.js"},
			excludes: []string{"*.hot-update.js"},
			exp:      abs("cypress/e2e/a.cy.js"),
		},
		{
			name:     "relative_exclude",
			patterns: []string{"**/*.cy.js"},
			excludes: []string{"**/node_modules/**", "cypress/e2e/nested/**"},
			exp:      abs("cypress/e2e/a.cy.js"),
		},
		{
			name:     "absolute_pattern",
			patterns: abs("cypress/support/*.js"),
			exp:      abs("cypress/support/e2e.js"),
		},
		{
			name:     "absolute_exclude",
			patterns: []string{"cypress/e2e/*.cy.*"},
			excludes: abs("cypress/e2e/a.cy.js"),
			exp:      abs("cypress/e2e/b.cy.ts"),
		},
		{
			name:     "directories_skipped",
			patterns: []string{"cypress/*"},
			exp:      nil,
		},
		{
			name:     "invalid_pattern",
			patterns: []string{"cypress/[a"},
			err:      true,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Discover(dir, tc.patterns, tc.excludes)
			if (err != nil) != tc.err {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("(-want, +got):\n%s", diff)
			}
		})
	}
}
