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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestServer(tb testing.TB, e Extractor, cache Cache) *Server {
	tb.Helper()

	dir := tb.TempDir()
	writeSpecs(tb, dir, map[string]string{
		"e2e/login.cy.js":  mustJSON(tb, &fakeSpec{Tests: []string{"login"}}),
		"e2e/signup.cy.js": mustJSON(tb, &fakeSpec{Tests: []string{"signup"}}),
		"e2e/broken.cy.js": "broken",
	}, "e2e/login.cy.js", "e2e/signup.cy.js", "e2e/broken.cy.js")

	s, err := NewServer(newTestSelector(tb, e), dir, cache, nil)
	if err != nil {
		tb.Fatal(err)
	}
	return s
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	sel := newTestSelector(t, &fakeExtractor{})
	if _, err := NewServer(nil, "dir", nil, nil); err == nil {
		t.Errorf("expected error for missing selector")
	}
	if _, err := NewServer(sel, "", nil, nil); err == nil {
		t.Errorf("expected error for missing folder")
	}
}

func TestServer_SelectHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		method string
		body   string
		status int
		exp    *selectResp
	}{
		{
			name:   "selects",
			method: http.MethodPost,
			body:   `{"grep":"login","spec_pattern":["e2e/**/*.cy.js"]}`,
			status: http.StatusOK,
			exp: &selectResp{
				Count:       2,
				Specs:       []string{"e2e/broken.cy.js", "e2e/login.cy.js"},
				Total:       3,
				Filtered:    true,
				FailedOpen:  []string{"e2e/broken.cy.js"},
				Diagnostics: []string{"e2e/broken.cy.js: parse error at 1:1: unexpected token"},
			},
		},
		{
			name:   "falls_back",
			method: http.MethodPost,
			body:   `{"grep":"nothing","spec_pattern":["e2e/*.cy.js"],"exclude_spec_pattern":["broken.*"]}`,
			status: http.StatusOK,
			exp: &selectResp{
				Count:    2,
				Specs:    []string{"e2e/login.cy.js", "e2e/signup.cy.js"},
				Total:    2,
				Filtered: true,
				FellBack: true,
			},
		},
		{
			name:   "wrong_method",
			method: http.MethodGet,
			status: http.StatusMethodNotAllowed,
		},
		{
			name:   "bad_json",
			method: http.MethodPost,
			body:   `{`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown_field",
			method: http.MethodPost,
			body:   `{"grepp":"login","spec_pattern":["e2e/*.cy.js"]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing_pattern",
			method: http.MethodPost,
			body:   `{"grep":"login"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "absolute_pattern",
			method: http.MethodPost,
			body:   `{"spec_pattern":["/etc/*"]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "parent_pattern",
			method: http.MethodPost,
			body:   `{"spec_pattern":["../**/*.js"]}`,
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, &fakeExtractor{}, nil)

			r := httptest.NewRequest(tc.method, "/select", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			s.SelectHandler().ServeHTTP(w, r)

			if got, want := w.Code, tc.status; got != want {
				t.Fatalf("expected %d to be %d: %s", got, want, w.Body.String())
			}
			if got, want := w.Header().Get(contentTypeHeader), contentTypeJSON; got != want {
				t.Errorf("expected %q to be %q", got, want)
			}

			if tc.status != http.StatusOK {
				var resp errorResp
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				if resp.Error == "" {
					t.Errorf("expected an error message")
				}
				return
			}

			var resp selectResp
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, &resp); diff != "" {
				t.Errorf("(-want, +got):\n%s", diff)
			}
		})
	}
}

func TestServer_SelectHandler_Cache(t *testing.T) {
	t.Parallel()

	e := &fakeExtractor{}
	cache := NewTimerCache(time.Hour)
	defer cache.Stop()
	s := newTestServer(t, e, cache)

	body := `{"grep":"signup","spec_pattern":["e2e/*.cy.js"],"exclude_spec_pattern":["broken.*"]}`
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(body))
		w := httptest.NewRecorder()
		s.SelectHandler().ServeHTTP(w, r)

		if got, want := w.Code, http.StatusOK; got != want {
			t.Fatalf("expected %d to be %d: %s", got, want, w.Body.String())
		}
	}

	if got, want := e.calls.Load(), int64(2); got != want {
		t.Errorf("expected %d extractions, got %d", want, got)
	}
}

func TestServer_MatchHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		status int
		exp    *matchResp
	}{
		{
			name:   "runs",
			body:   `{"grep_tags":"a,b+c","title":"t","effective_tags":["a","c"]}`,
			status: http.StatusOK,
			exp:    &matchResp{Run: true, Reason: reasonMatched, Kind: "tags"},
		},
		{
			name:   "skips",
			body:   `{"grep":"-slow","title":"slow retry test"}`,
			status: http.StatusOK,
			exp:    &matchResp{Run: false, Reason: reasonNegatedWord, Kind: "title"},
		},
		{
			name:   "forced",
			body:   `{"grep_tags":"@x","title":"t","required_tags":["@critical"],"force_tags":["@critical"]}`,
			status: http.StatusOK,
			exp:    &matchResp{Run: true, Reason: reasonRequiredTag, Kind: "tags"},
		},
		{
			name:   "empty",
			body:   `{}`,
			status: http.StatusOK,
			exp:    &matchResp{Run: true, Reason: reasonEmptyFilter, Kind: "empty"},
		},
		{
			name:   "bad_json",
			body:   `[]`,
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, &fakeExtractor{}, nil)

			r := httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			s.MatchHandler().ServeHTTP(w, r)

			if got, want := w.Code, tc.status; got != want {
				t.Fatalf("expected %d to be %d: %s", got, want, w.Body.String())
			}
			if tc.exp == nil {
				return
			}

			var resp matchResp
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, &resp); diff != "" {
				t.Errorf("(-want, +got):\n%s", diff)
			}
		})
	}
}
