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
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		level string
		exp   Severity
		err   bool
	}{
		{
			name: "default",
			exp:  SeverityInfo,
		},
		{
			name:  "lowercase",
			level: "debug",
			exp:   SeverityDebug,
		},
		{
			name:  "warn_alias",
			level: "WARN",
			exp:   SeverityWarn,
		},
		{
			name:  "warning",
			level: " warning ",
			exp:   SeverityWarn,
		},
		{
			name:  "unknown",
			level: "verbose",
			err:   true,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			l, err := NewLogger(tc.level, nil, nil)
			if (err != nil) != tc.err {
				t.Fatal(err)
			}
			if err != nil {
				return
			}
			if got, want := l.level, tc.exp; got != want {
				t.Errorf("expected %d to be %d", got, want)
			}
		})
	}
}

func TestLogger_Streams(t *testing.T) {
	t.Parallel()

	var out, errw bytes.Buffer
	l, err := NewLogger("info", &out, &errw)
	if err != nil {
		t.Fatal(err)
	}
	l.now = func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}

	l.Debug("hidden")
	l.Info("visible", "spec", "a.cy.js")
	l.Warn("careful", "count", 2)
	l.Error("broken", "error", fmt.Errorf("oops"), "dangling")

	got := decodeLines(t, out.Bytes())
	want := []map[string]any{
		{
			"time":     "2026-01-02T03:04:05Z",
			"severity": "INFO",
			"message":  "visible",
			"spec":     "a.cy.js",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("out (-want, +got):\n%s", diff)
	}

	got = decodeLines(t, errw.Bytes())
	want = []map[string]any{
		{
			"time":     "2026-01-02T03:04:05Z",
			"severity": "WARNING",
			"message":  "careful",
			"count":    float64(2),
		},
		{
			"time":     "2026-01-02T03:04:05Z",
			"severity": "ERROR",
			"message":  "broken",
			"error":    "oops",
			"dangling": "(MISSING)",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("err (-want, +got):\n%s", diff)
	}
}

func TestLogger_With(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l, err := NewLogger("debug", &out, &out)
	if err != nil {
		t.Fatal(err)
	}

	l.With("request", "abc").Debug("child", "k", "v")
	l.Debug("parent")

	got := decodeLines(t, out.Bytes())
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got, want := got[0]["request"], "abc"; got != want {
		t.Errorf("expected %v to be %v", got, want)
	}
	if _, ok := got[1]["request"]; ok {
		t.Errorf("expected parent entry to not carry child fields")
	}
}

func TestLogger_Nil(t *testing.T) {
	t.Parallel()

	var l *Logger
	l.Info("nothing happens")
	NewDiscardLogger().Error("nothing happens")
}

func decodeLines(tb testing.TB, b []byte) []map[string]any {
	tb.Helper()

	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			tb.Fatalf("failed to decode %q: %s", line, err)
		}
		out = append(out, m)
	}
	return out
}
