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
	"testing"
	"time"
)

func TestTimerCache(t *testing.T) {
	t.Parallel()

	c := NewTimerCache(50 * time.Millisecond)
	defer c.Stop()

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected missing key to not be cached")
	}

	want := &Selection{Specs: []string{"a.cy.js"}}
	c.Set("key", want)

	got, ok := c.Get("key")
	if !ok {
		t.Fatalf("expected key to be cached")
	}
	if got != want {
		t.Errorf("expected %v to be %v", got, want)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := c.Get("key"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected key to expire")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTimerCache_Replace(t *testing.T) {
	t.Parallel()

	c := NewTimerCache(time.Hour)
	defer c.Stop()

	first := &Selection{Specs: []string{"a.cy.js"}}
	second := &Selection{Specs: []string{"b.cy.js"}}
	c.Set("key", first)
	c.Set("key", second)

	got, ok := c.Get("key")
	if !ok {
		t.Fatalf("expected key to be cached")
	}
	if got != second {
		t.Errorf("expected replaced selection, got %v", got)
	}
}

func TestTimerCache_Stop(t *testing.T) {
	t.Parallel()

	c := NewTimerCache(time.Hour)
	c.Stop()
	c.Stop()

	c.Set("key", &Selection{})
	if _, ok := c.Get("key"); ok {
		t.Errorf("expected stopped cache to ignore writes")
	}
}
